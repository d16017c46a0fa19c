package model

import "time"

// AdjudicationSummary captures the full outcome of a single adjudication run,
// handed to the presentation layer (CLI output, decision PDF rendering).
type AdjudicationSummary struct {
	RequestID        string
	Extracted        ExtractedRequest
	TreatmentName    string
	RuleStatus       Status
	RuleOutcomes     []RuleOutcome
	Evidence         EvidenceOutcome
	FinalDecision    Status
	AuditID          int64
	DurationExtract  time.Duration
	DurationRules    time.Duration
	DurationEvidence time.Duration
	DurationTotal    time.Duration
}

// FailedRules returns the outcomes for rules that did not pass.
func (s *AdjudicationSummary) FailedRules() []RuleOutcome {
	var failed []RuleOutcome
	for _, o := range s.RuleOutcomes {
		if !o.Passed {
			failed = append(failed, o)
		}
	}
	return failed
}
