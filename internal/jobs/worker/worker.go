package worker

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	types "github.com/yungbote/speech-to-contract/internal/domain"
	"github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/envutil"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type Config struct {
	Concurrency       int
	MaxAttempts       int
	RetryDelay        time.Duration
	StaleRunning      time.Duration
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:       envutil.Int("WORKER_CONCURRENCY", 4),
		MaxAttempts:       envutil.Int("JOB_MAX_ATTEMPTS", 5),
		RetryDelay:        envutil.Duration("JOB_RETRY_DELAY", 30*time.Second),
		StaleRunning:      envutil.Duration("JOB_STALE_RUNNING", 30*time.Minute),
		PollInterval:      envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
		HeartbeatInterval: envutil.Duration("JOB_HEARTBEAT_INTERVAL", 30*time.Second),
	}
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 30 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	return c
}

// Worker drains job_run rows from the database queue. It is the delivery
// path used when Temporal is not configured.
type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	cfg      Config
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, cfg Config) *Worker {
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		cfg:      cfg.withDefaults(),
	}
}

// Run starts the pool and blocks until ctx is done and every loop has returned.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.runLoop(ctx, workerID)
		}(i + 1)
	}
	wg.Wait()
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain whatever is runnable before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and delivers a single message. It reports false when
// nothing was runnable.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.deliver(ctx, job)
	return true, nil
}

func (w *Worker) deliver(ctx context.Context, job *types.JobRun) {
	log := w.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	jc := runtime.NewContext(ctx, job, w.repo, log)

	hbCtx, stop := context.WithCancel(ctx)
	defer stop()
	go w.heartbeat(hbCtx, jc)

	if err := runtime.Dispatch(w.registry, jc, log); err != nil {
		if job.Attempts >= w.cfg.MaxAttempts {
			log.Error("Job gave up after max attempts", "error", err)
			return
		}
		log.Info("Job will be redelivered", "retry_in", w.cfg.RetryDelay)
	}
}

func (w *Worker) heartbeat(ctx context.Context, jc *runtime.Context) {
	t := time.NewTicker(w.cfg.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := jc.Heartbeat(); err != nil {
				w.log.Warn("Job heartbeat failed", "job_id", jc.Job.ID, "error", err)
			}
		}
	}
}
