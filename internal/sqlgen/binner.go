package sqlgen

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument marks inputs rejected before any SQL is rendered.
var ErrInvalidArgument = errors.New("invalid argument")

// BinExpressions renders one conditional-aggregation expression per bin.
// Each expression reports the percentage of rows in [start, end] whose
// detection flag is set, using 1 as the denominator for empty bins.
func BinExpressions(cols Columns, binWidth, binCount int) ([]string, error) {
	if binWidth <= 0 {
		return nil, fmt.Errorf("%w: bin width must be > 0, got %d", ErrInvalidArgument, binWidth)
	}
	if binCount < 0 {
		return nil, fmt.Errorf("%w: bin count must be >= 0, got %d", ErrInvalidArgument, binCount)
	}
	cols = cols.withDefaults()

	expressions := make([]string, 0, binCount)
	for i := 0; i < binCount; i++ {
		start := i * binWidth
		end := start + binWidth
		inBin := fmt.Sprintf("%s BETWEEN %d AND %d", cols.Distance, start, end)
		total := fmt.Sprintf("SUM(CASE WHEN %s THEN 1 ELSE 0 END)", inBin)
		expressions = append(expressions, fmt.Sprintf(
			`100 * SUM(CASE WHEN %s THEN CAST(%s AS INT) ELSE 0 END) / CASE WHEN %s = 0 THEN 1 ELSE %s END AS "%d-%d"`,
			inBin, cols.Detection, total, total, start, end,
		))
	}
	return expressions, nil
}

// RenderBins joins BinExpressions into a single select-list fragment.
func RenderBins(cols Columns, binWidth, binCount int) (string, error) {
	expressions, err := BinExpressions(cols, binWidth, binCount)
	if err != nil {
		return "", err
	}
	return strings.Join(expressions, ", "), nil
}
