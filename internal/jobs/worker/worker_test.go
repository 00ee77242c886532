package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/data/repos/testutil"
	types "github.com/yungbote/speech-to-contract/internal/domain"
	"github.com/yungbote/speech-to-contract/internal/domain/jobs"
	"github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
)

type handlerFunc struct {
	jobType string
	run     func(*runtime.Context) error
	calls   int
}

func (h *handlerFunc) Type() string { return h.jobType }

func (h *handlerFunc) Run(jc *runtime.Context) error {
	h.calls++
	return h.run(jc)
}

func setup(t *testing.T, handlers ...*handlerFunc) (*Worker, repos.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewSet(db, log).JobRuns
	reg := runtime.NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	w := NewWorker(log, repo, reg, Config{
		MaxAttempts:       2,
		RetryDelay:        time.Hour,
		HeartbeatInterval: time.Hour,
	})
	return w, repo
}

func enqueue(t *testing.T, repo repos.JobRunRepo, jobType string) *types.JobRun {
	t.Helper()
	id := uuid.New()
	run := &types.JobRun{
		OwnerUserID: uuid.New(),
		JobType:     jobType,
		EntityType:  "transcription",
		EntityID:    &id,
		Status:      jobs.StatusQueued,
		Stage:       "queued",
		Payload:     datatypes.JSON([]byte(`{"entity_id":"` + id.String() + `"}`)),
	}
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{run}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return run
}

func reload(t *testing.T, repo repos.JobRunRepo, id uuid.UUID) *types.JobRun {
	t.Helper()
	rows, err := repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{id})
	if err != nil || len(rows) != 1 {
		t.Fatalf("GetByIDs: %v (%d rows)", err, len(rows))
	}
	return rows[0]
}

func TestRunOnceOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		run        func(*runtime.Context) error
		wantStatus string
		wantError  bool
	}{
		{"success", func(*runtime.Context) error { return nil }, jobs.StatusSucceeded, false},
		{"cancelled", func(*runtime.Context) error { return runtime.ErrCanceled }, jobs.StatusSucceeded, false},
		{"validation", func(*runtime.Context) error {
			return runtime.Validation("classify", errors.New("unsupported"))
		}, jobs.StatusSucceeded, true},
		{"collaborator", func(*runtime.Context) error {
			return runtime.Collaborator("transcribe", context.DeadlineExceeded)
		}, jobs.StatusSucceeded, true},
		{"storage", func(*runtime.Context) error {
			return runtime.Storage("commit", errors.New("connection reset"))
		}, jobs.StatusFailed, true},
		{"panic", func(*runtime.Context) error { panic("boom") }, jobs.StatusFailed, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &handlerFunc{jobType: "transcription_run", run: tc.run}
			w, repo := setup(t, h)
			run := enqueue(t, repo, "transcription_run")

			ran, err := w.RunOnce(context.Background())
			if err != nil || !ran {
				t.Fatalf("RunOnce = %v, %v", ran, err)
			}
			got := reload(t, repo, run.ID)
			if got.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", got.Status, tc.wantStatus)
			}
			if (got.Error != "") != tc.wantError {
				t.Fatalf("error = %q, want error recorded: %v", got.Error, tc.wantError)
			}
			if got.Attempts != 1 {
				t.Fatalf("attempts = %d, want 1", got.Attempts)
			}
		})
	}
}

func TestRunOnceHonoursRetryDelay(t *testing.T) {
	h := &handlerFunc{jobType: "generation_run", run: func(*runtime.Context) error {
		return runtime.Storage("load", errors.New("db down"))
	}}
	w, repo := setup(t, h)
	enqueue(t, repo, "generation_run")

	if ran, err := w.RunOnce(context.Background()); err != nil || !ran {
		t.Fatalf("first RunOnce = %v, %v", ran, err)
	}
	ran, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if ran {
		t.Fatalf("failed message redelivered before retry delay elapsed")
	}
	if h.calls != 1 {
		t.Fatalf("handler calls = %d, want 1", h.calls)
	}
}

func TestRunOnceMissingHandler(t *testing.T) {
	w, repo := setup(t)
	run := enqueue(t, repo, "unknown_run")

	if ran, err := w.RunOnce(context.Background()); err != nil || !ran {
		t.Fatalf("RunOnce = %v, %v", ran, err)
	}
	got := reload(t, repo, run.ID)
	if got.Status != jobs.StatusSucceeded || got.Error == "" {
		t.Fatalf("job = %s %q, want handled with error", got.Status, got.Error)
	}
}

func TestRunOnceEmptyQueue(t *testing.T) {
	w, _ := setup(t)
	ran, err := w.RunOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("RunOnce = %v, %v, want false, nil", ran, err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
