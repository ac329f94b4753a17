package errors

import (
	"errors"
	"fmt"
)

// Sentinel failure classes for render jobs and stream control. Handlers and
// the render worker wrap these with fmt.Errorf("...: %w", ...) so callers can
// classify with errors.Is while keeping the verbatim tool output in the
// message.
var (
	// ErrValidation rejects a malformed job configuration at admission. No
	// job record is created for these.
	ErrValidation = errors.New("validation error")

	// ErrPipelineStage marks a non-zero or irregular exit from an external
	// tool invocation.
	ErrPipelineStage = errors.New("pipeline stage failure")

	// ErrMeasurement marks a duration probe that returned no usable value.
	// Treated as a stage failure by the worker.
	ErrMeasurement = errors.New("measurement failure")

	// ErrProcessSpawn marks a process that could not be launched at all, as
	// opposed to one that launched and exited non-zero.
	ErrProcessSpawn = errors.New("process spawn error")

	// ErrStreamDestination marks a failure to obtain or use an ingest
	// destination. Surfaced synchronously, before any process is spawned.
	ErrStreamDestination = errors.New("stream destination error")

	// ErrCanceled is a user-initiated stop. Not an error from the user's
	// point of view; surfaced distinctly from failures.
	ErrCanceled = errors.New("canceled")

	// ErrNotFound covers lookups of unknown job, video and stream IDs.
	ErrNotFound = errors.New("not found")

	// ErrStreamActive rejects a second start for a key whose push process
	// is still running.
	ErrStreamActive = errors.New("stream already active")

	// ErrNotRemovable rejects deletion of catalog entries that are durable
	// job artifacts rather than operator uploads.
	ErrNotRemovable = errors.New("not removable")
)

func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsStreamDestination(err error) bool {
	return errors.Is(err, ErrStreamDestination)
}

func IsStreamActive(err error) bool {
	return errors.Is(err, ErrStreamActive)
}

func IsNotRemovable(err error) bool {
	return errors.Is(err, ErrNotRemovable)
}
