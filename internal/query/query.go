package query

import (
	"context"
	"time"
)

// ExecutionState is the lifecycle state of one submitted query.
type ExecutionState string

const (
	StateRunning   ExecutionState = "RUNNING"
	StateSucceeded ExecutionState = "SUCCEEDED"
	StateFailed    ExecutionState = "FAILED"
	StateCancelled ExecutionState = "CANCELLED"
	// StateTimeout is never reported by an engine. Poller returns it when
	// the retry budget runs out while the query is still running.
	StateTimeout ExecutionState = "TIMEOUT"
)

// Terminal reports whether no further transition can follow s.
func (s ExecutionState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Handle identifies one query submission. It is only meaningful to the
// client that issued it.
type Handle string

type Status struct {
	State  ExecutionState
	Reason string
}

type SubmitRequest struct {
	SQL            string
	Database       string
	OutputLocation string
	WorkGroup      string
}

// ResultSet holds fetched rows as text. Engines follow the remote
// convention of returning the column header as row 0.
type ResultSet struct {
	Columns  []string
	Rows     [][]string
	Duration time.Duration
}

// DataRows returns Rows without the leading header row.
func (r ResultSet) DataRows() [][]string {
	if len(r.Rows) <= 1 {
		return nil
	}
	return r.Rows[1:]
}

type Client interface {
	Submit(ctx context.Context, request SubmitRequest) (Handle, error)
	PollStatus(ctx context.Context, handle Handle) (Status, error)
	FetchResults(ctx context.Context, handle Handle) (ResultSet, error)
}
