package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clipstats/clipstats/internal/observability"
	"github.com/clipstats/clipstats/internal/sqlgen"
)

type SchemaRow struct {
	ColumnName string
	DataType   string
}

// ExpectedSchema maps column names to expected data types. Columns that are
// not listed are never checked. Keys match column names case-insensitively.
type ExpectedSchema map[string]string

type SchemaReport struct {
	Table      string
	Valid      bool
	Checked    int
	Columns    []SchemaRow
	Mismatches []Mismatch
}

// Err returns a *ValidationError when the report holds mismatches.
func (r SchemaReport) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Table: r.Table, Mismatches: r.Mismatches}
}

// SchemaValidator checks a remote table's column types through the same
// submit/poll/fetch path used for data queries.
type SchemaValidator struct {
	Client         Client
	Poller         *Poller
	Database       string
	OutputLocation string
	WorkGroup      string
	Logger         *slog.Logger
}

func (v *SchemaValidator) Validate(ctx context.Context, table string, expected ExpectedSchema) (SchemaReport, error) {
	if v.Client == nil {
		return SchemaReport{}, fmt.Errorf("query client is required")
	}
	sqlText, err := sqlgen.SchemaQuery(v.Database, table)
	if err != nil {
		return SchemaReport{}, err
	}

	handle, err := v.Client.Submit(ctx, SubmitRequest{
		SQL:            sqlText,
		Database:       v.Database,
		OutputLocation: v.OutputLocation,
		WorkGroup:      v.WorkGroup,
	})
	if err != nil {
		return SchemaReport{}, fmt.Errorf("submit schema query: %w", err)
	}

	var poller Poller
	if v.Poller != nil {
		poller = *v.Poller
	} else {
		poller = *NewPoller(nil)
		poller.Logger = v.Logger
	}
	if poller.Client == nil {
		poller.Client = v.Client
	}
	status, err := poller.Await(ctx, handle)
	if err != nil {
		return SchemaReport{}, err
	}
	if err := CheckSucceeded(handle, status); err != nil {
		return SchemaReport{}, err
	}

	results, err := v.Client.FetchResults(ctx, handle)
	if err != nil {
		return SchemaReport{}, fmt.Errorf("fetch schema results: %w", err)
	}
	rows, err := ParseSchemaRows(results)
	if err != nil {
		return SchemaReport{}, err
	}

	report := CompareSchema(rows, expected)
	report.Table = table
	if len(report.Mismatches) > 0 {
		observability.AddSchemaMismatches(len(report.Mismatches))
	}
	if v.Logger != nil {
		for _, m := range report.Mismatches {
			v.Logger.WarnContext(ctx, "schema mismatch",
				slog.String("table", table),
				slog.String("column", m.Column),
				slog.String("expected", m.Expected),
				slog.String("actual", m.Actual),
			)
		}
	}
	return report, nil
}

// ParseSchemaRows skips the header row and reads (name, type) from the
// first two fields of every remaining row.
func ParseSchemaRows(results ResultSet) ([]SchemaRow, error) {
	data := results.DataRows()
	rows := make([]SchemaRow, 0, len(data))
	for i, row := range data {
		if len(row) < 2 {
			return nil, &DataShapeError{Index: i + 1, Row: row}
		}
		rows = append(rows, SchemaRow{
			ColumnName: strings.TrimSpace(row[0]),
			DataType:   strings.TrimSpace(row[1]),
		})
	}
	return rows, nil
}

// CompareSchema records a mismatch for every row whose column appears in
// expected with a different type. Column and type names compare
// case-insensitively.
func CompareSchema(rows []SchemaRow, expected ExpectedSchema) SchemaReport {
	wanted := make(map[string]string, len(expected))
	for name, dataType := range expected {
		wanted[strings.ToLower(strings.TrimSpace(name))] = dataType
	}

	report := SchemaReport{Valid: true, Columns: rows}
	for _, row := range rows {
		want, ok := wanted[strings.ToLower(row.ColumnName)]
		if !ok {
			continue
		}
		report.Checked++
		if !strings.EqualFold(strings.TrimSpace(want), row.DataType) {
			report.Valid = false
			report.Mismatches = append(report.Mismatches, Mismatch{
				Column:   row.ColumnName,
				Expected: want,
				Actual:   row.DataType,
			})
		}
	}
	return report
}

// ParseExpectedSchema parses "column=type" pairs.
func ParseExpectedSchema(pairs []string) (ExpectedSchema, error) {
	expected := ExpectedSchema{}
	for _, pair := range pairs {
		name, dataType, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		dataType = strings.TrimSpace(dataType)
		if !ok || name == "" || dataType == "" {
			return nil, fmt.Errorf("%w: expected column=type, got %q", ErrInvalidArgument, pair)
		}
		for existing := range expected {
			if strings.EqualFold(existing, name) {
				return nil, fmt.Errorf("%w: column %q listed more than once", ErrInvalidArgument, name)
			}
		}
		expected[name] = dataType
	}
	return expected, nil
}
