package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipstats/clipstats/internal/observability"
	"github.com/clipstats/clipstats/internal/sqlgen"
)

// Runner drives one detection query end to end: optional schema check,
// render, submit, await, fetch.
type Runner struct {
	Client         Client
	Backend        string
	Database       string
	OutputLocation string
	WorkGroup      string
	// RetryLimit and PollDelay are passed to the Poller as given; zero means
	// a single poll with no delay.
	RetryLimit     int
	PollDelay      time.Duration
	Logger         *slog.Logger
	Sleep          func(ctx context.Context, d time.Duration) error
}

type RunResult struct {
	SQL     string
	Handle  Handle
	Status  Status
	Schema  *SchemaReport
	Results ResultSet
}

// Run validates the table against expected (when non-empty), then executes
// the query rendered from spec. A schema mismatch aborts before the main
// query is submitted.
func (r *Runner) Run(ctx context.Context, spec sqlgen.QuerySpec, expected ExpectedSchema) (RunResult, error) {
	if r.Client == nil {
		return RunResult{}, fmt.Errorf("query client is required")
	}
	var result RunResult

	if len(expected) > 0 {
		report, err := r.ValidateSchema(ctx, spec.TableName, expected)
		if err != nil {
			return RunResult{}, err
		}
		result.Schema = &report
		if err := report.Err(); err != nil {
			return result, err
		}
	}

	sqlText, err := sqlgen.Build(spec)
	if err != nil {
		return result, err
	}
	result.SQL = sqlText

	handle, status, results, err := r.Execute(ctx, sqlText)
	result.Handle = handle
	result.Status = status
	result.Results = results
	return result, err
}

func (r *Runner) ValidateSchema(ctx context.Context, table string, expected ExpectedSchema) (SchemaReport, error) {
	validator := &SchemaValidator{
		Client:         r.Client,
		Poller:         r.newPoller(),
		Database:       r.Database,
		OutputLocation: r.OutputLocation,
		WorkGroup:      r.WorkGroup,
		Logger:         r.Logger,
	}
	return validator.Validate(ctx, table, expected)
}

// Execute submits sqlText and fetches results only after SUCCEEDED is
// observed.
func (r *Runner) Execute(ctx context.Context, sqlText string) (Handle, Status, ResultSet, error) {
	handle, err := r.Client.Submit(ctx, SubmitRequest{
		SQL:            sqlText,
		Database:       r.Database,
		OutputLocation: r.OutputLocation,
		WorkGroup:      r.WorkGroup,
	})
	if err != nil {
		return "", Status{}, ResultSet{}, fmt.Errorf("submit query: %w", err)
	}
	observability.ObserveQuerySubmitted(r.Backend)
	if r.Logger != nil {
		r.Logger.InfoContext(ctx, "query submitted",
			slog.String("execution_id", string(handle)),
			slog.String("backend", r.Backend),
			slog.String("database", r.Database),
		)
	}

	status, err := r.newPoller().Await(ctx, handle)
	if err != nil {
		return handle, Status{}, ResultSet{}, err
	}
	if err := CheckSucceeded(handle, status); err != nil {
		return handle, status, ResultSet{}, err
	}

	results, err := r.Client.FetchResults(ctx, handle)
	if err != nil {
		return handle, status, ResultSet{}, fmt.Errorf("fetch results for %s: %w", handle, err)
	}
	return handle, status, results, nil
}

func (r *Runner) newPoller() *Poller {
	return &Poller{
		Client:     r.Client,
		RetryLimit: r.RetryLimit,
		Delay:      r.PollDelay,
		Logger:     r.Logger,
		Sleep:      r.Sleep,
	}
}
