package runtime

import (
	"errors"
	"fmt"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

// Dispatch runs the registered handler for jc.Job and records the outcome on
// the message. The returned error is non-nil only when the message must be
// delivered again.
func Dispatch(registry *Registry, jc *Context, log *logger.Logger) (runErr error) {
	jobType := ""
	if jc.Job != nil {
		jobType = jc.Job.JobType
	}
	h, ok := registry.Get(jobType)
	if !ok {
		err := &missingHandlerError{JobType: jobType}
		log.Warn("No handler registered for job_type", "job_type", jobType, "job_id", jc.jobID())
		_ = jc.Handled("dispatch", err)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job handler panic", "job_id", jc.jobID(), "job_type", jobType, "panic", r)
			runErr = &panicError{Val: r}
			if err := jc.Fail("panic", runErr); err != nil {
				log.Warn("Recording panic failed", "job_id", jc.jobID(), "error", err)
			}
		}
	}()

	err := h.Run(jc)
	switch {
	case err == nil || errors.Is(err, ErrCanceled):
		if sErr := jc.Succeed("done"); sErr != nil {
			log.Warn("Recording success failed", "job_id", jc.jobID(), "error", sErr)
		}
		return nil
	case Redeliver(err):
		stage := StageOf(err, "run")
		log.Warn("Job delivery failed; will redeliver", "job_id", jc.jobID(), "job_type", jobType, "stage", stage, "error", err)
		if fErr := jc.Fail(stage, err); fErr != nil {
			log.Warn("Recording failure failed", "job_id", jc.jobID(), "error", fErr)
		}
		return err
	default:
		stage := StageOf(err, "run")
		kind, _ := KindOf(err)
		log.Error("Job ended in terminal failure", "job_id", jc.jobID(), "job_type", jobType, "kind", kind.String(), "stage", stage, "error", err)
		if hErr := jc.Handled(stage, err); hErr != nil {
			log.Warn("Recording terminal failure failed", "job_id", jc.jobID(), "error", hErr)
		}
		return nil
	}
}
