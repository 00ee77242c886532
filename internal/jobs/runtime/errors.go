package runtime

import (
	"errors"
	"fmt"
)

// Kind classifies why an orchestrator sub-step did not complete.
type Kind int

const (
	// KindValidation covers collaborator output that fails a hard gate
	// (unsupported type, schema mismatch). Never retried automatically.
	KindValidation Kind = iota + 1
	// KindCollaborator covers transport errors, timeouts and service errors
	// of an external call. Terminal per attempt; only an explicit Retry re-runs it.
	KindCollaborator
	// KindStorage means a job row read or write failed. The orchestrator
	// aborts without assuming its last write landed and the queue redelivers.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCollaborator:
		return "collaborator"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// ErrCanceled is the cooperative abort signal raised by the Gate. It is not a failure.
var ErrCanceled = errors.New("job canceled")

// StepError is returned by every orchestrator sub-step that fails.
type StepError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failure at %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s failure at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func Validation(stage string, err error) *StepError {
	return &StepError{Kind: KindValidation, Stage: stage, Err: err}
}

func Collaborator(stage string, err error) *StepError {
	return &StepError{Kind: KindCollaborator, Stage: stage, Err: err}
}

func Storage(stage string, err error) *StepError {
	return &StepError{Kind: KindStorage, Stage: stage, Err: err}
}

// KindOf extracts the kind of a wrapped StepError.
func KindOf(err error) (Kind, bool) {
	var se *StepError
	if errors.As(err, &se) && se != nil {
		return se.Kind, true
	}
	return 0, false
}

// StageOf returns the failing stage of a wrapped StepError, or fallback.
func StageOf(err error, fallback string) string {
	var se *StepError
	if errors.As(err, &se) && se != nil && se.Stage != "" {
		return se.Stage
	}
	return fallback
}

// Redeliver reports whether the queue should deliver the message again.
// Unclassified errors are treated like storage errors.
func Redeliver(err error) bool {
	if err == nil || errors.Is(err, ErrCanceled) {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	return kind == KindStorage
}
