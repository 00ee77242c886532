package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow delivers one job_run message. The workflow id is the message id;
// redelivery is the workflow retry policy set by the enqueuer, so the
// activity itself runs once per workflow attempt.
func Workflow(ctx workflow.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		jobID = strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	}
	if jobID == "" {
		return temporal.NewNonRetryableApplicationError("jobrun: missing job_id", "invalid_input", nil)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	if err := workflow.ExecuteActivity(ctx, ActivityDeliver, jobID).Get(ctx, nil); err != nil {
		return fmt.Errorf("deliver job %s: %w", jobID, err)
	}
	return nil
}
