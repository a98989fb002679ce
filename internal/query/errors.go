package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clipstats/clipstats/internal/sqlgen"
)

var (
	ErrInvalidArgument   = sqlgen.ErrInvalidArgument
	ErrDataShape         = errors.New("unexpected result shape")
	ErrExecutionFailure  = errors.New("query execution failed")
	ErrValidationFailure = errors.New("schema validation failed")
)

// ExecutionError reports a query that reached a terminal state other than
// SUCCEEDED. Results must not be fetched for it.
type ExecutionError struct {
	Handle Handle
	State  ExecutionState
	Reason string
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("could not complete query execution %s, state: %s", e.Handle, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return ErrExecutionFailure }

// DataShapeError carries the result row that could not be parsed.
type DataShapeError struct {
	Index int
	Row   []string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("%v: row %d has %d fields, want 2: %q", ErrDataShape, e.Index, len(e.Row), e.Row)
}

func (e *DataShapeError) Unwrap() error { return ErrDataShape }

type Mismatch struct {
	Column   string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", m.Column, m.Expected, m.Actual)
}

type ValidationError struct {
	Table      string
	Mismatches []Mismatch
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		parts = append(parts, m.String())
	}
	return fmt.Sprintf("failed to validate %s: %s", e.Table, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailure }

// CheckSucceeded converts a non-SUCCEEDED status into an *ExecutionError.
func CheckSucceeded(handle Handle, status Status) error {
	if status.State == StateSucceeded {
		return nil
	}
	return &ExecutionError{Handle: handle, State: status.State, Reason: status.Reason}
}
