package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	DefaultCategoryColumn  = "vehicle_type"
	DefaultItemColumn      = "clip_name"
	DefaultDistanceColumn  = "distance"
	DefaultDetectionColumn = "detection"

	DefaultBinWidth = 10
	DefaultBinCount = 10
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_-]{0,127}(\.[a-zA-Z0-9_][a-zA-Z0-9_-]{0,127})?$`)

// Columns names the dataset columns the detection query reads.
type Columns struct {
	Category  string
	Item      string
	Distance  string
	Detection string
}

func (c Columns) withDefaults() Columns {
	if c.Category == "" {
		c.Category = DefaultCategoryColumn
	}
	if c.Item == "" {
		c.Item = DefaultItemColumn
	}
	if c.Distance == "" {
		c.Distance = DefaultDistanceColumn
	}
	if c.Detection == "" {
		c.Detection = DefaultDetectionColumn
	}
	return c
}

// QuerySpec describes one detection-rate query. It is a plain value: build
// it once per invocation and pass it by value.
type QuerySpec struct {
	TableName  string
	LimitRows  int
	Categories *Filter
	ItemNames  *Filter
	BinWidth   int
	BinCount   int
	Columns    Columns
}

// Validate reports the first invalid field as ErrInvalidArgument.
func (s QuerySpec) Validate() error {
	if !identifierPattern.MatchString(s.TableName) {
		return fmt.Errorf("%w: invalid table name %q", ErrInvalidArgument, s.TableName)
	}
	if s.LimitRows <= 0 {
		return fmt.Errorf("%w: limit rows must be > 0, got %d", ErrInvalidArgument, s.LimitRows)
	}
	if s.BinWidth <= 0 {
		return fmt.Errorf("%w: bin width must be > 0, got %d", ErrInvalidArgument, s.BinWidth)
	}
	if s.BinCount < 0 {
		return fmt.Errorf("%w: bin count must be >= 0, got %d", ErrInvalidArgument, s.BinCount)
	}
	cols := s.Columns.withDefaults()
	for _, name := range []string{cols.Category, cols.Item, cols.Distance, cols.Detection} {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%w: invalid column name %q", ErrInvalidArgument, name)
		}
	}
	return nil
}

// Build renders the SELECT statement for spec. The same spec always renders
// the same text.
func Build(spec QuerySpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	cols := spec.Columns.withDefaults()

	bins, err := BinExpressions(cols, spec.BinWidth, spec.BinCount)
	if err != nil {
		return "", err
	}

	builder := sq.Select(cols.Category).
		Columns(bins...).
		From(spec.TableName)
	if spec.Categories.active() {
		builder = builder.Where(inPredicate(cols.Category, spec.Categories.Values))
	}
	if spec.ItemNames.active() {
		builder = builder.Where(inPredicate(cols.Item, spec.ItemNames.Values))
	}
	builder = builder.
		GroupBy(cols.Category).
		Limit(uint64(spec.LimitRows))

	sqlText, _, err := builder.ToSql()
	if err != nil {
		return "", fmt.Errorf("render select: %w", err)
	}
	return sqlText + ";", nil
}

func inPredicate(column string, values []string) string {
	return fmt.Sprintf("LOWER(%s) IN (%s)", column, RenderList(values))
}

// SchemaQuery renders the introspection query listing column names and
// types for table. When database is non-empty the lookup is narrowed to
// that schema.
func SchemaQuery(database, table string) (string, error) {
	if !identifierPattern.MatchString(table) {
		return "", fmt.Errorf("%w: invalid table name %q", ErrInvalidArgument, table)
	}
	if schema, name, ok := strings.Cut(table, "."); ok {
		table = name
		if database == "" {
			database = schema
		}
	}
	builder := sq.Select("column_name", "data_type").
		From("information_schema.columns").
		Where("table_name = " + quoteLiteral(strings.ToLower(table)))
	if database != "" {
		builder = builder.Where("table_schema = " + quoteLiteral(database))
	}
	sqlText, _, err := builder.OrderBy("ordinal_position").ToSql()
	if err != nil {
		return "", fmt.Errorf("render schema query: %w", err)
	}
	return sqlText, nil
}
