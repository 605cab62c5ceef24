package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"portwarden/scanner"
)

const maxBannerColumn = 100

// outputJSON writes the report as indented JSON.
func outputJSON(w io.Writer, report scanner.ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// outputPlainText prints one line per port, in request order, and a summary line.
func outputPlainText(w io.Writer, report scanner.ScanReport) {
	for _, outcome := range report.Outcomes {
		line := fmt.Sprintf("%s:%d - %s - %s", report.Host, outcome.Port, outcome.State, outcome.Service)
		if outcome.Banner != "" {
			bannerLine := extractFirstLine(outcome.Banner)
			if len(bannerLine) > maxBannerColumn {
				bannerLine = bannerLine[:maxBannerColumn] + "..."
			}
			line += " - " + bannerLine
		}
		if outcome.Abandoned {
			line += " (deadline)"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\n%d ports scanned in %dms: %d open, %d closed, %d filtered\n",
		report.TotalScanned, report.DurationMillis, report.OpenCount, report.ClosedCount, report.FilteredCount)
	if report.Truncated > 0 {
		fmt.Fprintf(w, "%d ports over the limit were skipped\n", report.Truncated)
	}
	if report.DeadlineExceeded {
		fmt.Fprintf(w, "%d ports did not settle before the scan deadline\n", report.Abandoned)
	}
}

// extractFirstLine returns the first line of a multi-line string.
func extractFirstLine(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	return first
}
