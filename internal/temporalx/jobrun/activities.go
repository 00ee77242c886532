package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/domain/jobs"
	jobrt "github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type Activities struct {
	Log      *logger.Logger
	Jobs     repos.JobRunRepo
	Registry *jobrt.Registry

	// HeartbeatInterval defaults to 10s.
	HeartbeatInterval time.Duration
}

// Deliver runs the orchestrator registered for the message. An error return
// asks Temporal to retry the workflow.
func (a *Activities) Deliver(ctx context.Context, jobID string) error {
	if a == nil || a.Jobs == nil || a.Registry == nil {
		return fmt.Errorf("jobrun: activity not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(jobID))
	if err != nil || id == uuid.Nil {
		return fmt.Errorf("jobrun: invalid job_id %q", jobID)
	}

	dbc := dbctx.Context{Ctx: ctx}
	rows, err := a.Jobs.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return jobrt.Storage("load_job", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		a.Log.Warn("Job not found; nothing to deliver", "job_id", id)
		return nil
	}
	job := rows[0]
	if job.Status == jobs.StatusSucceeded {
		return nil
	}

	if err := a.Jobs.MarkRunning(dbc, id); err != nil {
		return jobrt.Storage("mark_running", err)
	}
	job.Status = jobs.StatusRunning
	job.Attempts++

	log := a.Log.With("job_id", id, "job_type", job.JobType, "attempt", job.Attempts)
	jc := jobrt.NewContext(ctx, job, a.Jobs, log)

	stop := a.startHeartbeat(ctx, jc)
	defer stop()

	return jobrt.Dispatch(a.Registry, jc, log)
}

func (a *Activities) startHeartbeat(ctx context.Context, jc *jobrt.Context) func() {
	interval := a.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
				if err := jc.Heartbeat(); err != nil {
					a.Log.Warn("Job heartbeat failed", "job_id", jc.Job.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}
