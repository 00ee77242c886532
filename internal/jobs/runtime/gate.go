package runtime

import (
	"context"
	"fmt"
)

// CancelProbe re-reads the persisted status of one job and reports whether it
// has been cancelled. A job that no longer exists counts as cancelled.
type CancelProbe func(ctx context.Context) (cancelled bool, err error)

// Gate is the cooperative cancellation check applied before and after every
// collaborator call. Work already handed to a collaborator is not
// interrupted; only its result is discarded once the gate trips.
type Gate struct {
	probe CancelProbe
}

func NewGate(probe CancelProbe) *Gate {
	return &Gate{probe: probe}
}

// Check returns ErrCanceled when the job was cancelled, a storage StepError
// when the status could not be read, and nil otherwise.
func (g *Gate) Check(ctx context.Context, stage string) error {
	if g == nil || g.probe == nil {
		return nil
	}
	cancelled, err := g.probe(ctx)
	if err != nil {
		return Storage(stage, fmt.Errorf("cancellation check: %w", err))
	}
	if cancelled {
		return ErrCanceled
	}
	return nil
}
