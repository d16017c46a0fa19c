package model

// Status is an adjudication status for the rule engine, the evidence
// verifier, and the final decision. PENDING is only ever held by the
// evidence verifier; a final decision is always APPROVED or DENIED.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDenied   Status = "DENIED"
)
