package pipeline

import "fmt"

// ConfigurationError is fatal: the CLI surfaces it immediately and never
// retries. Everything else the pipeline converts into a recoverable
// result.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// GenerationError reports a failed generation run with enough context to
// reproduce it.
type GenerationError struct {
	Subject string
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating %q on %s: %v", e.Subject, e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError reports an assessment that could not be computed at
// all. Individual validator malfunctions never surface here; the
// composite isolates those.
type ValidationError struct {
	Subject string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validating %q: %v", e.Subject, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RouteError reports that no registered backend qualified for a task.
// Recoverable: the caller reports it and moves on.
type RouteError struct {
	TaskType string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("no backend qualifies for task %q", e.TaskType)
}
