package tracer

import "fmt"

// InputError rejects invalid buffers or parameters synchronously.
// Documented clamp policies (color count, noise, corner) apply before
// validation; anything else out of range is an error, never a silent
// clamp.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// CancellationError marks a task superseded by newer input or dropped on
// queue overflow. Callers can distinguish it from real failures: the
// newer submission won, nothing is broken.
type CancellationError struct {
	Reason string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("task cancelled: %s", e.Reason)
}

// ResourceError reports an unavailable backend or worker. Policy is
// graceful degradation to the sequential pure-Go path; the error is
// surfaced as a status event, never a fatal abort.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s unavailable: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
