package domain

import "time"

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// BatchOutcome is the terminal record for one processed design.
type BatchOutcome struct {
	Slug      string
	Status    OutcomeStatus
	Stage     string // failing stage, "" on success
	Err       string // human-readable failure message, "" on success
	ListingID string // draft listing created for the design, "" on failure
	Duration  time.Duration
}

// BatchSummary is the immutable result of one pipeline run. Success is true
// only if the configured processing mode completed without a fatal halt.
type BatchSummary struct {
	RunID           string
	Mode            string
	Success         bool
	TotalDiscovered int
	Processed       int
	Succeeded       int
	Failed          int
	Outcomes        []BatchOutcome
	Elapsed         time.Duration
}

// FirstFailure returns the first failed outcome, if any. Fail-fast semantics
// mean no design after it was attempted.
func (s *BatchSummary) FirstFailure() (BatchOutcome, bool) {
	for _, o := range s.Outcomes {
		if o.Status == OutcomeFailed {
			return o, true
		}
	}
	return BatchOutcome{}, false
}
