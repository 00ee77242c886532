package jobrun

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
	"gorm.io/datatypes"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/data/repos/testutil"
	types "github.com/yungbote/speech-to-contract/internal/domain"
	"github.com/yungbote/speech-to-contract/internal/domain/jobs"
	jobrt "github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
)

func TestWorkflowDeliversOnce(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	jobID := uuid.NewString()
	calls := 0
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(func(_ context.Context, id string) error {
		calls++
		if id != jobID {
			return errors.New("wrong job id")
		}
		return nil
	}, activity.RegisterOptions{Name: ActivityDeliver})

	env.ExecuteWorkflow(WorkflowName, jobID)
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("activity calls = %d, want 1", calls)
	}
}

func TestWorkflowSurfacesDeliveryError(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(func(context.Context, string) error {
		return errors.New("storage unavailable")
	}, activity.RegisterOptions{Name: ActivityDeliver})

	env.ExecuteWorkflow(WorkflowName, uuid.NewString())
	if err := env.GetWorkflowError(); err == nil {
		t.Fatalf("expected workflow error")
	}
}

type stubHandler struct {
	err error
}

func (stubHandler) Type() string { return "transcription_run" }

func (h stubHandler) Run(*jobrt.Context) error { return h.err }

func seedJob(t *testing.T, repo repos.JobRunRepo) *types.JobRun {
	t.Helper()
	entity := uuid.New()
	run := &types.JobRun{
		OwnerUserID: uuid.New(),
		JobType:     "transcription_run",
		EntityType:  "transcription",
		EntityID:    &entity,
		Status:      jobs.StatusQueued,
		Stage:       "queued",
		Payload:     datatypes.JSON([]byte(`{}`)),
	}
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{run}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return run
}

func TestDeliverActivity(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantErr    bool
		wantStatus string
	}{
		{"success", nil, false, jobs.StatusSucceeded},
		{"terminal", jobrt.Validation("classify", errors.New("unsupported")), false, jobs.StatusSucceeded},
		{"redeliver", jobrt.Storage("commit", errors.New("conn reset")), true, jobs.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := testutil.DB(t)
			log := testutil.Logger(t)
			repo := repos.NewSet(db, log).JobRuns
			reg := jobrt.NewRegistry()
			if err := reg.Register(stubHandler{err: tc.err}); err != nil {
				t.Fatalf("Register: %v", err)
			}
			run := seedJob(t, repo)

			var suite testsuite.WorkflowTestSuite
			env := suite.NewTestActivityEnvironment()
			acts := &Activities{Log: log, Jobs: repo, Registry: reg}
			env.RegisterActivityWithOptions(acts.Deliver, activity.RegisterOptions{Name: ActivityDeliver})

			_, err := env.ExecuteActivity(ActivityDeliver, run.ID.String())
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			rows, err := repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{run.ID})
			if err != nil || len(rows) != 1 {
				t.Fatalf("GetByIDs: %v", err)
			}
			if rows[0].Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", rows[0].Status, tc.wantStatus)
			}
			if rows[0].Attempts != 1 {
				t.Fatalf("attempts = %d, want 1", rows[0].Attempts)
			}
		})
	}
}

func TestDeliverSkipsFinishedMessage(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewSet(db, log).JobRuns
	reg := jobrt.NewRegistry()
	if err := reg.Register(stubHandler{err: errors.New("must not run")}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	run := seedJob(t, repo)
	if err := repo.MarkSucceeded(dbctx.Context{Ctx: context.Background()}, run.ID, "done"); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	acts := &Activities{Log: log, Jobs: repo, Registry: reg}
	if err := acts.Deliver(context.Background(), run.ID.String()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := acts.Deliver(context.Background(), "not-a-uuid"); err == nil {
		t.Fatalf("expected error for malformed id")
	}
}
