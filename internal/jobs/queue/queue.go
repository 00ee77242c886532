// Package queue submits job_run messages for the transcription and
// generation orchestrators. Delivery is at least once.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	types "github.com/yungbote/speech-to-contract/internal/domain"
	"github.com/yungbote/speech-to-contract/internal/domain/jobs"
	"github.com/yungbote/speech-to-contract/internal/platform/ctxutil"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

const (
	JobTypeTranscription = "transcription_run"
	JobTypeGeneration    = "generation_run"

	EntityTranscription = "transcription"
	EntityGeneration    = "generation"

	// WorkflowName is the Temporal workflow type that executes one message.
	WorkflowName = "job_run"
)

type Enqueuer interface {
	EnqueueTranscription(dbc dbctx.Context, ownerUserID, transcriptionID uuid.UUID) (*types.JobRun, error)
	EnqueueGeneration(dbc dbctx.Context, ownerUserID, generationID uuid.UUID) (*types.JobRun, error)
}

type enqueuer struct {
	log       *logger.Logger
	repo      repos.JobRunRepo
	temporal  temporalsdkclient.Client
	taskQueue string
}

// New returns an Enqueuer. With a nil Temporal client messages are only
// written to job_run and the polling worker picks them up.
func New(baseLog *logger.Logger, repo repos.JobRunRepo, tc temporalsdkclient.Client, taskQueue string) Enqueuer {
	if taskQueue == "" {
		taskQueue = "speech-to-contract"
	}
	return &enqueuer{
		log:       baseLog.With("service", "JobQueue"),
		repo:      repo,
		temporal:  tc,
		taskQueue: taskQueue,
	}
}

func (q *enqueuer) EnqueueTranscription(dbc dbctx.Context, ownerUserID, transcriptionID uuid.UUID) (*types.JobRun, error) {
	return q.enqueue(dbc, ownerUserID, JobTypeTranscription, EntityTranscription, transcriptionID)
}

func (q *enqueuer) EnqueueGeneration(dbc dbctx.Context, ownerUserID, generationID uuid.UUID) (*types.JobRun, error) {
	return q.enqueue(dbc, ownerUserID, JobTypeGeneration, EntityGeneration, generationID)
}

func (q *enqueuer) enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType, entityType string, entityID uuid.UUID) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if entityID == uuid.Nil {
		return nil, fmt.Errorf("missing %s id", entityType)
	}
	payload := map[string]any{"entity_id": entityID.String()}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			payload["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			payload["request_id"] = td.RequestID
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := entityID
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    &id,
		Status:      jobs.StatusQueued,
		Stage:       "queued",
		Payload:     datatypes.JSON(raw),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := q.repo.Create(dbc, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	q.log.Debug("Job enqueued", "job_id", job.ID, "job_type", jobType, "entity_id", entityID)

	if q.temporal == nil {
		return job, nil
	}
	if err := q.dispatch(dbc.Ctx, job.ID); err != nil {
		// The row stays failed so the operator can see why the job never ran.
		_ = q.repo.MarkFailed(dbctx.Context{Ctx: dbc.Ctx}, job.ID, "dispatch", err)
		return job, err
	}
	return job, nil
}

// One workflow per message; the message id is the workflow id so a
// duplicate dispatch is rejected by Temporal.
func (q *enqueuer) dispatch(ctx context.Context, jobID uuid.UUID) error {
	ctx = ctxutil.Default(ctx)
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             q.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	_, err := q.temporal.ExecuteWorkflow(ctx, opts, WorkflowName, jobID.String())
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	if err == nil || errors.As(err, &already) {
		return nil
	}
	return fmt.Errorf("start temporal workflow: %w", err)
}
