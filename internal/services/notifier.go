package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/redisbus"
)

// StatusNotifier announces persisted status transitions. Failures are logged
// and never affect job state.
type StatusNotifier interface {
	TranscriptionStatus(ctx context.Context, ownerUserID, id uuid.UUID, status contracts.TranscriptionStatus)
	GenerationStatus(ctx context.Context, ownerUserID, id uuid.UUID, status contracts.GenerationStatus)
}

type statusNotifier struct {
	log *logger.Logger
	bus redisbus.Bus
}

func NewStatusNotifier(baseLog *logger.Logger, bus redisbus.Bus) StatusNotifier {
	if bus == nil {
		bus = redisbus.Nop()
	}
	return &statusNotifier{log: baseLog.With("service", "StatusNotifier"), bus: bus}
}

func (n *statusNotifier) TranscriptionStatus(ctx context.Context, ownerUserID, id uuid.UUID, status contracts.TranscriptionStatus) {
	n.publish(ctx, "transcription", ownerUserID, id, string(status))
}

func (n *statusNotifier) GenerationStatus(ctx context.Context, ownerUserID, id uuid.UUID, status contracts.GenerationStatus) {
	n.publish(ctx, "generation", ownerUserID, id, string(status))
}

func (n *statusNotifier) publish(ctx context.Context, kind string, ownerUserID, id uuid.UUID, status string) {
	ev := redisbus.Event{
		Kind:        kind,
		ID:          id.String(),
		OwnerUserID: ownerUserID.String(),
		Status:      status,
		At:          time.Now().UTC(),
	}
	if err := n.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		n.log.Warn("Publish status event failed", "kind", kind, "id", id, "status", status, "error", err)
	}
}
