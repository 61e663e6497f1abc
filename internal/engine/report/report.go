package report

import (
	"fmt"
	"strings"
	"time"

	"listforge/internal/engine/domain"
)

// Render formats a run summary as a human-readable report. On any failure the
// first failing design is surfaced up front: fail-fast halting means nothing
// after it was attempted.
func Render(summary *domain.BatchSummary) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	b.WriteString(rule + "\n")
	b.WriteString("LISTING PIPELINE REPORT\n")
	b.WriteString(rule + "\n")

	if summary.Success {
		b.WriteString("Status:     SUCCESS\n")
	} else {
		b.WriteString("Status:     FAILED\n")
	}
	fmt.Fprintf(&b, "Mode:       %s\n", strings.ToUpper(summary.Mode))
	fmt.Fprintf(&b, "Run ID:     %s\n", summary.RunID)
	fmt.Fprintf(&b, "Elapsed:    %s\n", summary.Elapsed.Round(time.Millisecond))

	fmt.Fprintf(&b, "Discovered: %d\n", summary.TotalDiscovered)
	fmt.Fprintf(&b, "Processed:  %d\n", summary.Processed)
	fmt.Fprintf(&b, "Succeeded:  %d\n", summary.Succeeded)
	fmt.Fprintf(&b, "Failed:     %d\n", summary.Failed)

	if failure, ok := summary.FirstFailure(); ok {
		b.WriteString("\n")
		fmt.Fprintf(&b, "First failure: %s (stage %s)\n", failure.Slug, failure.Stage)
		fmt.Fprintf(&b, "  %s\n", failure.Err)
		fmt.Fprintf(&b, "  No design after %s was attempted.\n", failure.Slug)
	}

	if len(summary.Outcomes) > 0 {
		b.WriteString("\nDESIGN OUTCOMES\n")
		b.WriteString(strings.Repeat("-", 60) + "\n")
		writeOutcomes(&b, summary.Outcomes)
	}

	b.WriteString(rule + "\n")
	return b.String()
}

func writeOutcomes(b *strings.Builder, outcomes []domain.BatchOutcome) {
	slugWidth := len("DESIGN")
	statusWidth := len("STATUS")
	for _, o := range outcomes {
		if len(o.Slug) > slugWidth {
			slugWidth = len(o.Slug)
		}
		if len(string(o.Status)) > statusWidth {
			statusWidth = len(string(o.Status))
		}
	}

	fmt.Fprintf(b, "%-*s  %-*s  %s\n", slugWidth, "DESIGN", statusWidth, "STATUS", "DETAIL")
	for _, o := range outcomes {
		detail := ""
		switch o.Status {
		case domain.OutcomeSucceeded:
			if o.ListingID != "" {
				detail = fmt.Sprintf("listing %s (%s)", o.ListingID, o.Duration.Round(time.Millisecond))
			}
		case domain.OutcomeFailed:
			detail = fmt.Sprintf("%s: %s", o.Stage, o.Err)
		}
		fmt.Fprintf(b, "%-*s  %-*s  %s\n", slugWidth, o.Slug, statusWidth, string(o.Status), detail)
	}
}
