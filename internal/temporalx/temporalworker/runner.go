package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	jobrt "github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/temporalx"
	"github.com/yungbote/speech-to-contract/internal/temporalx/jobrun"
)

type Runner struct {
	log         *logger.Logger
	tc          temporalsdkclient.Client
	cfg         temporalx.Config
	jobRepo     repos.JobRunRepo
	registry    *jobrt.Registry
	concurrency int
}

func NewRunner(
	baseLog *logger.Logger,
	tc temporalsdkclient.Client,
	cfg temporalx.Config,
	jobRepo repos.JobRunRepo,
	registry *jobrt.Registry,
	concurrency int,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if jobRepo == nil || registry == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		log:         baseLog.With("component", "TemporalWorker"),
		tc:          tc,
		cfg:         cfg,
		jobRepo:     jobRepo,
		registry:    registry,
		concurrency: concurrency,
	}, nil
}

// Run starts polling the task queue and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	w, err := r.start(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	r.log.Info("Temporal worker stopped")
	return nil
}

func (r *Runner) start(ctx context.Context) (worker.Worker, error) {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)
	deadline := time.Now().Add(r.cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return w, nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if r.cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			if missingNamespace {
				return nil, fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return nil, startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)

		t := time.NewTimer(temporalx.ClampBackoff(r.cfg.Backoff, r.cfg.BackoffMax, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})
	acts := &jobrun.Activities{
		Log:      r.log,
		Jobs:     r.jobRepo,
		Registry: r.registry,
	}
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Deliver, activity.RegisterOptions{Name: jobrun.ActivityDeliver})
	return w
}
