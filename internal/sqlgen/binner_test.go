package sqlgen

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBinExpressionsAliasesEachBin(t *testing.T) {
	for _, tc := range []struct {
		width int
		count int
	}{
		{width: 1, count: 1},
		{width: 10, count: 10},
		{width: 20, count: 5},
		{width: 7, count: 0},
	} {
		expressions, err := BinExpressions(Columns{}, tc.width, tc.count)
		if err != nil {
			t.Fatalf("BinExpressions(%d, %d) error = %v", tc.width, tc.count, err)
		}
		if len(expressions) != tc.count {
			t.Fatalf("len(expressions) = %d, want %d", len(expressions), tc.count)
		}
		for i, expr := range expressions {
			alias := fmt.Sprintf(`AS "%d-%d"`, i*tc.width, i*tc.width+tc.width)
			if !strings.HasSuffix(expr, alias) {
				t.Fatalf("expression %d = %q, want suffix %q", i, expr, alias)
			}
		}
	}
}

func TestRenderBinsCommaSeparated(t *testing.T) {
	text, err := RenderBins(Columns{}, 20, 5)
	if err != nil {
		t.Fatalf("RenderBins() error = %v", err)
	}
	parts := strings.Split(text, ", ")
	if len(parts) != 5 {
		t.Fatalf("parts = %d, want 5: %s", len(parts), text)
	}
	if !strings.Contains(parts[0], "distance BETWEEN 0 AND 20") {
		t.Fatalf("first bin = %q", parts[0])
	}
	if !strings.Contains(parts[0], "CAST(detection AS INT)") {
		t.Fatalf("first bin = %q", parts[0])
	}
	if !strings.Contains(parts[0], "= 0 THEN 1 ELSE") {
		t.Fatalf("first bin lacks empty-bin guard: %q", parts[0])
	}

	empty, err := RenderBins(Columns{}, 20, 0)
	if err != nil {
		t.Fatalf("RenderBins() error = %v", err)
	}
	if empty != "" {
		t.Fatalf("RenderBins(count=0) = %q", empty)
	}
}

func TestBinExpressionsRejectsZeroWidth(t *testing.T) {
	for _, width := range []int{0, -5} {
		_, err := BinExpressions(Columns{}, width, 3)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("BinExpressions(width=%d) error = %v, want ErrInvalidArgument", width, err)
		}
	}
	if _, err := BinExpressions(Columns{}, 10, -1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("BinExpressions(count=-1) error = %v", err)
	}
}

func TestBinExpressionsUsesCustomColumns(t *testing.T) {
	expressions, err := BinExpressions(Columns{Distance: "range_m", Detection: "hit"}, 5, 1)
	if err != nil {
		t.Fatalf("BinExpressions() error = %v", err)
	}
	if !strings.Contains(expressions[0], "range_m BETWEEN 0 AND 5") || !strings.Contains(expressions[0], "CAST(hit AS INT)") {
		t.Fatalf("expression = %q", expressions[0])
	}
}
