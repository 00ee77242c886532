package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/jobs/queue"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

// GenerationStatusView is what a status poll reports. ContractID is set only
// on the poll that delivers a finished generation.
type GenerationStatusView struct {
	ID         uuid.UUID                  `json:"id"`
	Status     contracts.GenerationStatus `json:"status"`
	ContractID *uuid.UUID                 `json:"contract_id,omitempty"`
}

// GenerationService is the lifecycle API of Generation jobs. A nil id
// addresses the request user's latest transcription or generation.
type GenerationService interface {
	Create(dbc dbctx.Context, transcriptionID uuid.UUID) (*contracts.Generation, error)
	GetStatus(dbc dbctx.Context, id uuid.UUID) (*GenerationStatusView, error)
	Cancel(dbc dbctx.Context, id uuid.UUID) (*contracts.Generation, error)
	Retry(dbc dbctx.Context, id uuid.UUID) (*contracts.Generation, error)
}

type generationService struct {
	log            *logger.Logger
	transcriptions repos.TranscriptionRepo
	generations    repos.GenerationRepo
	contracts      repos.ContractRepo
	queue          queue.Enqueuer
	notify         StatusNotifier
}

func NewGenerationService(
	baseLog *logger.Logger,
	transcriptions repos.TranscriptionRepo,
	generations repos.GenerationRepo,
	contractRepo repos.ContractRepo,
	q queue.Enqueuer,
	notify StatusNotifier,
) GenerationService {
	return &generationService{
		log:            baseLog.With("service", "GenerationService"),
		transcriptions: transcriptions,
		generations:    generations,
		contracts:      contractRepo,
		queue:          q,
		notify:         notify,
	}
}

func (s *generationService) Create(dbc dbctx.Context, transcriptionID uuid.UUID) (*contracts.Generation, error) {
	owner, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	var t *contracts.Transcription
	if transcriptionID == uuid.Nil {
		t, err = s.transcriptions.GetLatestDoneByOwner(dbc, owner)
	} else {
		t, err = s.transcriptions.GetByID(dbc, transcriptionID)
	}
	if err != nil {
		return nil, err
	}
	if t == nil || t.OwnerUserID != owner {
		return nil, ErrNoAudioData
	}
	if t.Status != contracts.TranscriptionDone {
		return nil, ErrTranscriptionNotReady
	}

	existing, err := s.generations.GetByTranscriptionID(dbc, t.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTranscriptionConsumed
	}
	if t.ScriptRef == nil || *t.ScriptRef == "" {
		return nil, ErrTranscriptionNotReady
	}
	active, err := s.generations.ExistsActiveForOwner(dbc, owner)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveGenerationExists
	}

	g := &contracts.Generation{
		ID:              uuid.New(),
		OwnerUserID:     owner,
		TranscriptionID: t.ID,
		Status:          contracts.GenerationGenerating,
	}
	if err := s.generations.Create(dbc, g); err != nil {
		if errors.Is(err, repos.ErrDuplicate) {
			if again, _ := s.generations.GetByTranscriptionID(dbc, t.ID); again != nil {
				return nil, ErrTranscriptionConsumed
			}
			return nil, ErrActiveGenerationExists
		}
		return nil, err
	}
	s.notify.GenerationStatus(dbc.Ctx, owner, g.ID, g.Status)

	if _, err := s.queue.EnqueueGeneration(dbc, owner, g.ID); err != nil {
		return nil, fmt.Errorf("enqueue generation: %w", err)
	}
	s.log.Info("Generation created", "generation_id", g.ID, "transcription_id", t.ID)
	return g, nil
}

func (s *generationService) load(dbc dbctx.Context, id uuid.UUID) (*contracts.Generation, error) {
	owner, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	var g *contracts.Generation
	if id == uuid.Nil {
		g, err = s.generations.GetLatestByOwner(dbc, owner)
	} else {
		g, err = s.generations.GetByID(dbc, id)
	}
	if err != nil {
		return nil, err
	}
	if g == nil || g.OwnerUserID != owner {
		return nil, ErrNoGenerationInProgress
	}
	return g, nil
}

// GetStatus hands a finished contract out once: the poll that sees done
// archives the generation, and every later poll reports nothing in progress.
func (s *generationService) GetStatus(dbc dbctx.Context, id uuid.UUID) (*GenerationStatusView, error) {
	g, err := s.load(dbc, id)
	if err != nil {
		return nil, err
	}
	view := &GenerationStatusView{ID: g.ID, Status: g.Status}
	switch g.Status {
	case contracts.GenerationArchived:
		return nil, ErrNoGenerationInProgress
	case contracts.GenerationDone:
		c, err := s.contracts.GetByGenerationID(dbc, g.ID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("generation %s is done without a contract", g.ID)
		}
		ok, err := s.generations.TransitionStatus(dbc, g.ID, contracts.GenerationArchived)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Another poll delivered it first.
			return nil, ErrNoGenerationInProgress
		}
		s.notify.GenerationStatus(dbc.Ctx, g.OwnerUserID, g.ID, contracts.GenerationArchived)
		cid := c.ID
		view.ContractID = &cid
	}
	return view, nil
}

func (s *generationService) Cancel(dbc dbctx.Context, id uuid.UUID) (*contracts.Generation, error) {
	g, err := s.load(dbc, id)
	if err != nil {
		return nil, err
	}
	if !g.Status.CanTransitionTo(contracts.GenerationCancelled) {
		return nil, ErrCannotCancelGeneration
	}
	ok, err := s.generations.TransitionStatus(dbc, g.ID, contracts.GenerationCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCannotCancelGeneration
	}
	g.Status = contracts.GenerationCancelled
	s.notify.GenerationStatus(dbc.Ctx, g.OwnerUserID, g.ID, g.Status)
	return g, nil
}

func (s *generationService) Retry(dbc dbctx.Context, id uuid.UUID) (*contracts.Generation, error) {
	g, err := s.load(dbc, id)
	if err != nil {
		return nil, err
	}
	if g.Status != contracts.GenerationFailed {
		return nil, ErrNotRetryable
	}
	ok, err := s.generations.TransitionStatus(dbc, g.ID, contracts.GenerationGenerating)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRetryable
	}
	g.Status = contracts.GenerationGenerating
	s.notify.GenerationStatus(dbc.Ctx, g.OwnerUserID, g.ID, g.Status)
	if _, err := s.queue.EnqueueGeneration(dbc, g.OwnerUserID, g.ID); err != nil {
		return nil, fmt.Errorf("enqueue generation: %w", err)
	}
	return g, nil
}
