// Package sqldb runs detection queries on a local database/sql engine
// (duckdb or postgres) behind the same submit/poll/fetch contract as the
// remote service.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipstats/clipstats/internal/observability"
	"github.com/clipstats/clipstats/internal/query"
	"github.com/clipstats/clipstats/internal/storage"
)

var _ query.Client = (*Engine)(nil)

var ErrUnknownHandle = errors.New("unknown execution handle")

type execution struct {
	status  query.Status
	results query.ResultSet
}

// Engine executes each statement synchronously at Submit and keeps the final
// state per handle so PollStatus and FetchResults behave like the remote
// service.
type Engine struct {
	Store  storage.ObjectStore
	Logger *slog.Logger

	db     *sql.DB
	driver string

	mu         sync.Mutex
	executions map[query.Handle]execution
	workDir    string
	newHandle  func() query.Handle
}

func NewEngine(db *sql.DB, driver string) *Engine {
	return &Engine{
		db:         db,
		driver:     driver,
		executions: map[query.Handle]execution{},
		newHandle:  func() query.Handle { return query.Handle(uuid.NewString()) },
	}
}

func (e *Engine) Submit(ctx context.Context, request query.SubmitRequest) (query.Handle, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return "", fmt.Errorf("%w: sql is required", query.ErrInvalidArgument)
	}
	if e.db == nil {
		return "", fmt.Errorf("database is required")
	}

	handle := e.newHandle()
	results, err := e.run(observability.ContextWithExecutionID(ctx, string(handle)), sqlText)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	record := execution{status: query.Status{State: query.StateSucceeded}, results: results}
	if err != nil {
		record = execution{status: query.Status{State: query.StateFailed, Reason: err.Error()}}
		if e.Logger != nil {
			e.Logger.WarnContext(ctx, "local query failed",
				slog.String("execution_id", string(handle)),
				slog.String("driver", e.driver),
				slog.Any("error", err),
			)
		}
	}

	e.mu.Lock()
	e.executions[handle] = record
	e.mu.Unlock()
	return handle, nil
}

// PollStatus reports the recorded state. Failed and cancelled executions are
// discarded once observed since they have no results to fetch.
func (e *Engine) PollStatus(_ context.Context, handle query.Handle) (query.Status, error) {
	record, err := e.lookup(handle, func(record execution) bool {
		return record.status.State.Terminal() && record.status.State != query.StateSucceeded
	})
	if err != nil {
		return query.Status{}, err
	}
	return record.status, nil
}

// FetchResults returns the rows of a succeeded execution. The handle is
// discarded afterwards.
func (e *Engine) FetchResults(_ context.Context, handle query.Handle) (query.ResultSet, error) {
	record, err := e.lookup(handle, func(execution) bool { return true })
	if err != nil {
		return query.ResultSet{}, err
	}
	if record.status.State != query.StateSucceeded {
		return query.ResultSet{}, &query.ExecutionError{Handle: handle, State: record.status.State, Reason: record.status.Reason}
	}
	return record.results, nil
}

// RegisterDataset exposes every parquet object under prefix in the object
// store as a duckdb view named table. It returns the number of files read.
func (e *Engine) RegisterDataset(ctx context.Context, table, prefix string) (int, error) {
	if e.driver != DriverDuckDB {
		return 0, fmt.Errorf("dataset views require the %s driver, got %q", DriverDuckDB, e.driver)
	}
	if e.Store == nil {
		return 0, fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(table) == "" {
		return 0, fmt.Errorf("%w: table name is required", query.ErrInvalidArgument)
	}

	objects, err := e.Store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list dataset %q: %w", prefix, err)
	}
	workDir, err := e.ensureWorkDir()
	if err != nil {
		return 0, err
	}

	localPaths := make([]string, 0, len(objects))
	for index, object := range objects {
		if path.Ext(object.Key) != ".parquet" {
			continue
		}
		reader, err := e.Store.Get(ctx, object.Key)
		if err != nil {
			return 0, fmt.Errorf("get object %q: %w", object.Key, err)
		}
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(table), index))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return 0, fmt.Errorf("write local parquet file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return 0, fmt.Errorf("close object %q: %w", object.Key, err)
		}
		localPaths = append(localPaths, localPath)
	}
	if len(localPaths) == 0 {
		return 0, fmt.Errorf("no parquet files under %q", prefix)
	}

	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(table), quoteStringArray(localPaths))
	if _, err := e.db.ExecContext(ctx, viewSQL); err != nil {
		return 0, fmt.Errorf("create view for table %q: %w", table, err)
	}
	if e.Logger != nil {
		e.Logger.InfoContext(ctx, "dataset registered",
			slog.String("table", table),
			slog.String("prefix", prefix),
			slog.Int("files", len(localPaths)),
		)
	}
	return len(localPaths), nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	workDir := e.workDir
	e.workDir = ""
	e.mu.Unlock()

	var errs []error
	if workDir != "" {
		errs = append(errs, os.RemoveAll(workDir))
	}
	if e.db != nil {
		errs = append(errs, e.db.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) run(ctx context.Context, sqlText string) (query.ResultSet, error) {
	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.ResultSet{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.ResultSet{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := [][]string{append([]string(nil), columns...)}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, formatValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.ResultSet{}, fmt.Errorf("iterate rows: %w", err)
	}

	elapsed := time.Since(start)
	if e.Logger != nil {
		e.Logger.DebugContext(ctx, "local query finished",
			slog.String("execution_id", observability.ExecutionIDFromContext(ctx)),
			slog.Int("rows", len(resultRows)-1),
			slog.Duration("elapsed", elapsed),
		)
	}
	return query.ResultSet{
		Columns:  columns,
		Rows:     resultRows,
		Duration: elapsed,
	}, nil
}

// lookup returns the record for handle and removes it when discard reports
// true.
func (e *Engine) lookup(handle query.Handle, discard func(execution) bool) (execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, ok := e.executions[handle]
	if !ok {
		return execution{}, fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	if discard(record) {
		delete(e.executions, handle)
	}
	return record, nil
}

func (e *Engine) ensureWorkDir() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.workDir != "" {
		return e.workDir, nil
	}
	workDir, err := os.MkdirTemp("", "clipstats-query-")
	if err != nil {
		return "", fmt.Errorf("create query temp dir: %w", err)
	}
	e.workDir = workDir
	return workDir, nil
}

// formatValues renders scanned values the way the remote service returns
// them: text, with NULL as the empty string.
func formatValues(values []any) []string {
	formatted := make([]string, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case nil:
			formatted[i] = ""
		case []byte:
			formatted[i] = string(typed)
		case string:
			formatted[i] = typed
		case float64:
			formatted[i] = strconv.FormatFloat(typed, 'f', -1, 64)
		case float32:
			formatted[i] = strconv.FormatFloat(float64(typed), 'f', -1, 32)
		case time.Time:
			formatted[i] = typed.UTC().Format(time.RFC3339Nano)
		default:
			formatted[i] = fmt.Sprint(typed)
		}
	}
	return formatted
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
