package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/clipstats/clipstats/internal/sqlgen"
)

func detectionSpec() sqlgen.QuerySpec {
	return sqlgen.QuerySpec{
		TableName:  "clips",
		LimitRows:  10,
		BinWidth:   20,
		BinCount:   5,
		Categories: sqlgen.NewFilter("scooter"),
	}
}

func TestRunValidatesThenQueries(t *testing.T) {
	client := &fakeClient{results: map[Handle]ResultSet{
		"exec-1": schemaResults([]string{"vehicle_type", "varchar"}),
		"exec-2": {Columns: []string{"vehicle_type", "0-20"}, Rows: [][]string{{"vehicle_type", "0-20"}, {"scooter", "50"}}},
	}}
	runner := &Runner{
		Client:         client,
		Backend:        "test",
		Database:       "clips_db",
		OutputLocation: "s3://out/",
		Sleep:          noSleep,
	}

	result, err := runner.Run(context.Background(), detectionSpec(), ExpectedSchema{"vehicle_type": "varchar"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Schema == nil || !result.Schema.Valid {
		t.Fatalf("Schema = %+v", result.Schema)
	}
	if result.Handle != "exec-2" || result.Status.State != StateSucceeded {
		t.Fatalf("handle/state = %s/%s", result.Handle, result.Status.State)
	}
	if len(result.Results.DataRows()) != 1 || result.Results.DataRows()[0][0] != "scooter" {
		t.Fatalf("rows = %+v", result.Results.Rows)
	}
	if len(client.submitted) != 2 {
		t.Fatalf("submitted = %d", len(client.submitted))
	}
	request := client.submitted[1]
	if request.SQL != result.SQL || !strings.HasSuffix(request.SQL, "LIMIT 10;") {
		t.Fatalf("submitted SQL = %q", request.SQL)
	}
	if request.OutputLocation != "s3://out/" || request.Database != "clips_db" {
		t.Fatalf("request = %+v", request)
	}
}

func TestRunAbortsOnSchemaMismatch(t *testing.T) {
	client := &fakeClient{results: map[Handle]ResultSet{
		"exec-1": schemaResults([]string{"vehicle_type", "int"}),
	}}
	runner := &Runner{Client: client, Sleep: noSleep}

	result, err := runner.Run(context.Background(), detectionSpec(), ExpectedSchema{"vehicle_type": "varchar"})
	if !errors.Is(err, ErrValidationFailure) {
		t.Fatalf("Run() error = %v, want ErrValidationFailure", err)
	}
	if len(client.submitted) != 1 {
		t.Fatalf("main query should not be submitted, got %d submissions", len(client.submitted))
	}
	if result.Schema == nil || len(result.Schema.Mismatches) != 1 {
		t.Fatalf("Schema = %+v", result.Schema)
	}
}

func TestRunDoesNotFetchAfterFailure(t *testing.T) {
	client := &fakeClient{states: []ExecutionState{StateRunning, StateFailed}}
	runner := &Runner{Client: client, Sleep: noSleep}

	result, err := runner.Run(context.Background(), detectionSpec(), nil)
	if !errors.Is(err, ErrExecutionFailure) {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Status.State != StateFailed {
		t.Fatalf("State = %s", result.Status.State)
	}
	if len(client.fetched) != 0 {
		t.Fatalf("fetched = %v", client.fetched)
	}
}

func TestRunRejectsInvalidSpecBeforeSubmit(t *testing.T) {
	client := &fakeClient{}
	runner := &Runner{Client: client, Sleep: noSleep}
	spec := detectionSpec()
	spec.BinWidth = 0
	if _, err := runner.Run(context.Background(), spec, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Run() error = %v", err)
	}
	if len(client.submitted) != 0 {
		t.Fatalf("submitted = %d", len(client.submitted))
	}
}

func TestRunTimesOut(t *testing.T) {
	client := &fakeClient{states: []ExecutionState{StateRunning}}
	runner := &Runner{Client: client, RetryLimit: 2, Sleep: noSleep}
	result, err := runner.Run(context.Background(), detectionSpec(), nil)
	var execErr *ExecutionError
	if !errors.As(err, &execErr) || execErr.State != StateTimeout {
		t.Fatalf("Run() error = %v", err)
	}
	if client.polls != 3 || result.Status.State != StateTimeout {
		t.Fatalf("polls = %d state = %s", client.polls, result.Status.State)
	}
}
