package main

import (
	"fmt"
	"strings"

	"github.com/use-agent/pricehist/export"
	"github.com/use-agent/pricehist/models"
)

// formatReport renders one section per input: a status line, and for
// successes the newest rows records as CSV (all of them when rows <= 0).
func formatReport(report *models.BatchReport, rows int) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d inputs succeeded\n\n", report.Succeeded, len(report.Results))

	for i, r := range report.Results {
		if !r.OK() {
			msg := "unknown error"
			if r.Error != nil {
				msg = fmt.Sprintf("[%s] %s", r.Error.Code, r.Error.Message)
			}
			fmt.Fprintf(&sb, "--- [%d] %s FAILED: %s ---\n\n", i+1, r.Input.RawValue, msg)
			continue
		}

		fmt.Fprintf(&sb, "--- [%d] %s: %d records, %s to %s", i+1, r.Ticker, len(r.Records), r.FirstDate(), r.LastDate())
		if r.Degraded {
			sb.WriteString(" (default range only)")
		}
		sb.WriteString(" ---\n")

		records := r.Records
		if rows > 0 && len(records) > rows {
			records = records[len(records)-rows:]
		}
		if err := export.WriteCSV(&sb, records); err != nil {
			return "", fmt.Errorf("format %s: %w", r.Ticker, err)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
