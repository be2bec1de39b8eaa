package dune

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("dune: execution did not finish in time")
	// ErrMissingExecutionID means the execute endpoint answered 2xx without an id.
	ErrMissingExecutionID = errors.New("dune: response has no execution_id")
)

// SubmissionError is returned when the execute request fails. Body holds
// the endpoint's response for diagnostics.
type SubmissionError struct {
	Status int
	Body   string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dune: submit failed: %v", e.Err)
	}
	return fmt.Sprintf("dune: submit failed: HTTP %d: %s", e.Status, e.Body)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollError is returned when a results request fails. An unfinished
// execution is not a PollError.
type PollError struct {
	ExecutionID string
	Status      int
	Body        string
	Err         error
}

func (e *PollError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dune: poll %s failed: %v", e.ExecutionID, e.Err)
	}
	return fmt.Sprintf("dune: poll %s failed: HTTP %d: %s", e.ExecutionID, e.Status, e.Body)
}

func (e *PollError) Unwrap() error { return e.Err }

// TimeoutError is returned when the poll loop exceeds its attempt or time
// bound.
type TimeoutError struct {
	ExecutionID string
	Attempts    int
	Elapsed     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dune: execution %s unfinished after %d polls (%s)",
		e.ExecutionID, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RowError reports a finished result row that lacks a required field.
type RowError struct {
	Index int
	Field string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("dune: row %d: missing or invalid %q", e.Index, e.Field)
}

// ExecutionError reports an execution that finished without a result, for
// example because the query failed or was cancelled upstream.
type ExecutionError struct {
	ExecutionID string
	State       string
	Message     string
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("dune: execution %s ended in %s: %s", e.ExecutionID, e.State, e.Message)
	}
	return fmt.Sprintf("dune: execution %s ended in %s without a result", e.ExecutionID, e.State)
}
