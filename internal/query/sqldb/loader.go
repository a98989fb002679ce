package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"

	"github.com/clipstats/clipstats/internal/dataset"
)

// loadBatchSize bounds the rows per INSERT statement.
const loadBatchSize = 500

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// LoadDetections inserts rows into table inside one transaction and returns
// the number of rows written. The table must already exist; for postgres it
// is created by the migrations package.
func LoadDetections(ctx context.Context, db *sql.DB, driver, table string, rows []dataset.Detection) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	if !tableNamePattern.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var placeholders sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		placeholders = sq.Dollar
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var loaded int64
	for start := 0; start < len(rows); start += loadBatchSize {
		end := min(start+loadBatchSize, len(rows))
		insert := sq.Insert(table).
			Columns("vehicle_type", "clip_name", "distance", "detection", "captured_at").
			PlaceholderFormat(placeholders)
		for _, row := range rows[start:end] {
			var capturedAt any
			if !row.CapturedAt.IsZero() {
				capturedAt = row.CapturedAt.UTC()
			}
			insert = insert.Values(row.VehicleType, row.ClipName, row.Distance, row.Detection, capturedAt)
		}
		sqlText, args, err := insert.ToSql()
		if err != nil {
			return 0, fmt.Errorf("render insert: %w", err)
		}
		result, err := tx.ExecContext(ctx, sqlText, args...)
		if err != nil {
			return 0, fmt.Errorf("insert detections into %s: %w", table, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			affected = int64(end - start)
		}
		loaded += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load tx: %w", err)
	}
	return loaded, nil
}
