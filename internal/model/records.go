package model

import (
	"time"

	"github.com/google/uuid"
)

// ExtractedRequest holds the identifying fields pulled out of an uploaded
// prior authorization document. Extraction is best-effort: any field may be
// empty, and downstream rules treat empty fields as failing conditions.
// DiagnosisCodes is deduplicated and sorted lexicographically so treatment
// resolution is deterministic across runs.
type ExtractedRequest struct {
	PatientID      string
	ProviderNPI    string
	DiagnosisCodes []string
}

// PatientRecord is a reference-store patient row. Read-only to the pipeline.
type PatientRecord struct {
	ID          string
	Age         int
	InsuranceID string
}

// ProviderRecord is a reference-store provider row keyed by NPI.
// The active window endpoints are kept as raw text: unparsable dates must
// surface as a failed provider-active rule, not a load error.
type ProviderRecord struct {
	NPI                int64
	ProviderType       string
	TotalServices      int
	TotalBeneficiaries int
	ActiveFrom         string
	ActiveTo           string
}

// TreatmentRecord maps a diagnosis code to an authorized treatment.
type TreatmentRecord struct {
	Name          string
	DiagnosisCode string
}

// InsurancePolicy is a reference-store policy row. ClaimDate is raw text
// for the same reason as ProviderRecord's window endpoints.
type InsurancePolicy struct {
	ID        string
	ClaimDate string
}

// RuleOutcome is the result of one eligibility rule evaluation.
type RuleOutcome struct {
	RuleID  string
	Passed  bool
	Message string
}

// LabTestRow is one extracted lab result as returned by the LLM. The JSON
// keys match the array shape the model is prompted to produce.
type LabTestRow struct {
	Name        string `json:"Test Name"`
	Result      string `json:"Result"`
	NormalRange string `json:"Normal Range"`
}

// LabTestCheck records how one required lab test was classified.
type LabTestCheck struct {
	Name        string
	Result      string
	NormalRange string
	Found       bool
	WithinRange bool
}

// ImageEvidenceDetail is the structured payload for X-ray verification.
type ImageEvidenceDetail struct {
	ClaimedCode    string
	DetectedBones  []string
	PredictedCodes []string
	MatchedCodes   []string
}

// LabEvidenceDetail is the structured payload for lab-report verification.
type LabEvidenceDetail struct {
	Checks []LabTestCheck
}

// EvidenceOutcome is the verdict of an evidence verifier. Exactly one of
// Image or Lab is set depending on the variant that produced it.
type EvidenceOutcome struct {
	Status  Status
	Summary string
	Image   *ImageEvidenceDetail
	Lab     *LabEvidenceDetail
}

// AuditRecord is one immutable row in the audit log. Records are created
// exactly once per final decision and never mutated or deleted; Timestamp
// (write time) is the only ordering key.
type AuditRecord struct {
	AuditID        int64
	RequestID      uuid.UUID
	Timestamp      time.Time
	PatientID      string
	TreatmentName  string
	DiagnosisCode  string
	ProviderNPI    string
	RuleStatus     Status
	EvidenceStatus Status
	FinalDecision  Status
}
