package report

import (
	"strings"
	"testing"
	"time"

	"listforge/internal/engine/domain"
)

func TestRender_SuccessfulRun(t *testing.T) {
	summary := &domain.BatchSummary{
		RunID:           "run-1",
		Mode:            "batch",
		Success:         true,
		TotalDiscovered: 2,
		Processed:       2,
		Succeeded:       2,
		Elapsed:         1500 * time.Millisecond,
		Outcomes: []domain.BatchOutcome{
			{Slug: "d1", Status: domain.OutcomeSucceeded, ListingID: "9001", Duration: 700 * time.Millisecond},
			{Slug: "d2", Status: domain.OutcomeSucceeded, ListingID: "9002", Duration: 800 * time.Millisecond},
		},
	}

	out := Render(summary)

	for _, want := range []string{
		"Status:     SUCCESS",
		"Mode:       BATCH",
		"Run ID:     run-1",
		"Elapsed:    1.5s",
		"Discovered: 2",
		"listing 9001",
		"listing 9002",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "First failure") {
		t.Errorf("successful report should not mention a failure:\n%s", out)
	}
}

func TestRender_FailedRunCallsOutFirstFailure(t *testing.T) {
	summary := &domain.BatchSummary{
		RunID:           "run-2",
		Mode:            "batch",
		TotalDiscovered: 5,
		Processed:       3,
		Succeeded:       2,
		Failed:          1,
		Outcomes: []domain.BatchOutcome{
			{Slug: "d1", Status: domain.OutcomeSucceeded, ListingID: "9001"},
			{Slug: "d2", Status: domain.OutcomeSucceeded, ListingID: "9002"},
			{Slug: "d3", Status: domain.OutcomeFailed, Stage: "mockups", Err: "render engine crashed"},
		},
	}

	out := Render(summary)

	for _, want := range []string{
		"Status:     FAILED",
		"First failure: d3 (stage mockups)",
		"render engine crashed",
		"No design after d3 was attempted.",
		"mockups: render engine crashed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRender_EmptyRunOmitsOutcomeTable(t *testing.T) {
	summary := &domain.BatchSummary{RunID: "run-3", Mode: "validate", Success: true}

	out := Render(summary)
	if strings.Contains(out, "DESIGN OUTCOMES") {
		t.Errorf("empty run should not print an outcome table:\n%s", out)
	}
	if !strings.Contains(out, "Processed:  0") {
		t.Errorf("expected zero processed count:\n%s", out)
	}
}

func TestRender_ColumnsAlign(t *testing.T) {
	summary := &domain.BatchSummary{
		RunID: "run-4",
		Mode:  "batch",
		Outcomes: []domain.BatchOutcome{
			{Slug: "short", Status: domain.OutcomeSucceeded, ListingID: "1"},
			{Slug: "a_much_longer_design_slug", Status: domain.OutcomeSucceeded, ListingID: "2"},
		},
	}

	out := Render(summary)
	lines := strings.Split(out, "\n")

	var header, row string
	for i, line := range lines {
		if strings.HasPrefix(line, "DESIGN ") {
			header = line
			row = lines[i+1]
			break
		}
	}
	if header == "" {
		t.Fatalf("outcome table header not found:\n%s", out)
	}
	if strings.Index(header, "STATUS") != strings.Index(row, "succeeded") {
		t.Errorf("status column misaligned:\nheader: %q\nrow:    %q", header, row)
	}
}
