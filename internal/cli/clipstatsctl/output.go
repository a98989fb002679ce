package clipstatsctl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/clipstats/clipstats/internal/query"
)

type resultJSON struct {
	ExecutionID string              `json:"execution_id"`
	State       string              `json:"state"`
	SQL         string              `json:"sql"`
	Columns     []string            `json:"columns"`
	Rows        []map[string]string `json:"rows"`
	DurationMS  int64               `json:"duration_ms"`
}

func printResults(w io.Writer, format string, result query.RunResult) error {
	header := result.Results.Columns
	if len(header) == 0 && len(result.Results.Rows) > 0 {
		header = result.Results.Rows[0]
	}
	rows := result.Results.DataRows()

	if format == "json" {
		payload := resultJSON{
			ExecutionID: string(result.Handle),
			State:       string(result.Status.State),
			SQL:         result.SQL,
			Columns:     header,
			Rows:        make([]map[string]string, 0, len(rows)),
			DurationMS:  result.Results.Duration.Milliseconds(),
		}
		for _, row := range rows {
			record := make(map[string]string, len(header))
			for i, column := range header {
				if i < len(row) {
					record[column] = row[i]
				}
			}
			payload.Rows = append(payload.Rows, record)
		}
		return writeJSON(w, payload)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows, execution %s)\n", len(rows), result.Handle)
	return err
}

func printSchemaReport(w io.Writer, format string, report query.SchemaReport) error {
	if format == "json" {
		mismatches := make([]map[string]string, 0, len(report.Mismatches))
		for _, mismatch := range report.Mismatches {
			mismatches = append(mismatches, map[string]string{
				"column":   mismatch.Column,
				"expected": mismatch.Expected,
				"actual":   mismatch.Actual,
			})
		}
		return writeJSON(w, map[string]any{
			"table":      report.Table,
			"valid":      report.Valid,
			"checked":    report.Checked,
			"mismatches": mismatches,
		})
	}

	if report.Valid {
		_, err := fmt.Fprintf(w, "schema of %s is valid (%d columns checked)\n", report.Table, report.Checked)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "column\texpected\tactual")
	for _, mismatch := range report.Mismatches {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", mismatch.Column, mismatch.Expected, mismatch.Actual)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
