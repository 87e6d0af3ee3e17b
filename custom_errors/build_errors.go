package custom_errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned synchronously by queue operations.
var (
	// ErrQueueFull is returned when the store is still at capacity after eviction.
	ErrQueueFull = errors.New("build queue is full")
	// ErrJobNotFound is returned when a job id is unknown to the store.
	ErrJobNotFound = errors.New("build job not found")
)

// SpawnError means the compiler toolchain could not be started at all.
// It is reported distinctly from a compile failure.
type SpawnError struct {
	Tool string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start compiler '%s': %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// CompileError means the toolchain exited non-zero. Output carries the
// captured stderr verbatim so diagnostics reach the caller unmodified.
type CompileError struct {
	ExitCode int
	Output   string
}

func (e *CompileError) Error() string {
	if e.Output != "" {
		return e.Output
	}
	return fmt.Sprintf("compiler exited with code %d", e.ExitCode)
}

// TimeoutError means a processing job exceeded the configured deadline.
type TimeoutError struct {
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("build timed out after %s", e.Deadline)
}

// CancelledError means the caller cancelled the job while it was still pending.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "build cancelled"
	}
	return fmt.Sprintf("build cancelled: %s", e.Reason)
}

// PipelineError wraps any failure raised inside a pipeline phase other than
// the compile itself (materialize, promote, patch). It is always converted to
// a terminal job error, never allowed to take the worker slot down.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline phase '%s' failed: %v", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
