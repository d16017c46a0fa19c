// Package adjudicate orchestrates the prior authorization pipeline:
// extract → resolve-treatment → rules → evidence → compose → audit.
// One request runs the chain strictly sequentially; multiple requests may
// run through the same Pipeline concurrently, sharing only the data stores.
package adjudicate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/paflow/internal/audit"
	"github.com/gyeh/paflow/internal/evidence"
	"github.com/gyeh/paflow/internal/extract"
	"github.com/gyeh/paflow/internal/model"
	"github.com/gyeh/paflow/internal/refdata"
	"github.com/gyeh/paflow/internal/rules"
)

// EvidenceKind selects the verification variant. The caller chooses; the
// pipeline never infers it from the document.
type EvidenceKind string

const (
	EvidenceLab  EvidenceKind = "lab"
	EvidenceXRay EvidenceKind = "xray"
)

// ErrEvidenceInconclusive is returned when the evidence verifier cannot
// reach a verdict. No audit record is written for an incomplete
// adjudication.
var ErrEvidenceInconclusive = errors.New("evidence verification inconclusive")

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Pipeline holds the long-lived handles one process needs to adjudicate
// requests: the reference data gateway, the audit store, and one verifier
// per evidence variant. It replaces what was previously global session
// state with an explicitly constructed context passed into each stage.
type Pipeline struct {
	Gateway *refdata.Store
	Audit   *audit.Store
	Image   evidence.Verifier
	Lab     evidence.Verifier
	Now     func() time.Time
	Log     zerolog.Logger
}

// Request is one prior authorization adjudication: the clinical document
// plus one piece of corroborating evidence.
type Request struct {
	Document     []byte
	DocumentMIME string
	Evidence     []byte
	EvidenceMIME string
	Kind         EvidenceKind
}

// Run executes the full pipeline for one request. Extraction and parsing
// problems degrade into failed rules or denied evidence; only storage
// failures and an inconclusive evidence verdict abort the run, and neither
// leaves a partial audit record behind.
func (p *Pipeline) Run(ctx context.Context, req *Request) (*model.AdjudicationSummary, error) {
	totalStart := time.Now()
	requestID := uuid.New()
	log := p.Log.With().Str("request_id", requestID.String()).Logger()

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	// Phase 1: extract identifying fields from the document.
	extractStart := time.Now()
	extracted := extract.Request(req.Document, req.DocumentMIME)
	durExtract := time.Since(extractStart)
	log.Info().
		Str("patient_id", extracted.PatientID).
		Str("provider_npi", extracted.ProviderNPI).
		Strs("diagnosis_codes", extracted.DiagnosisCodes).
		Dur("duration", durExtract).
		Msg("extraction complete")

	// Phase 2: resolve the treatment from the claimed diagnosis codes.
	treatment, err := p.Gateway.TreatmentByDiagnosis(ctx, extracted.DiagnosisCodes)
	if err != nil {
		return nil, &PipelineError{Phase: "resolve-treatment", Err: err}
	}
	treatmentName := ""
	if treatment != nil {
		treatmentName = treatment.Name
	}
	log.Info().Str("treatment", treatmentName).Msg("treatment resolved")

	// Phase 3: eligibility rules.
	rulesStart := time.Now()
	ruleStatus, outcomes, err := rules.Evaluate(ctx, p.Gateway, now(),
		extracted.PatientID, treatmentName, extracted.ProviderNPI)
	if err != nil {
		return nil, &PipelineError{Phase: "rules", Err: err}
	}
	durRules := time.Since(rulesStart)
	log.Info().
		Str("rule_status", string(ruleStatus)).
		Int("failed_rules", countFailed(outcomes)).
		Dur("duration", durRules).
		Msg("rule evaluation complete")

	// Phase 4: evidence verification, branching on the selected variant.
	verifier, err := p.verifierFor(req.Kind)
	if err != nil {
		return nil, &PipelineError{Phase: "evidence", Err: err}
	}
	claimedCode := ""
	if len(extracted.DiagnosisCodes) > 0 {
		claimedCode = extracted.DiagnosisCodes[0]
	}
	evidenceStart := time.Now()
	outcome, err := verifier.Verify(ctx, evidence.Input{
		Document:      req.Evidence,
		MIME:          req.EvidenceMIME,
		ClaimedCode:   claimedCode,
		TreatmentName: treatmentName,
	})
	if err != nil {
		return nil, &PipelineError{Phase: "evidence", Err: err}
	}
	durEvidence := time.Since(evidenceStart)
	log.Info().
		Str("evidence_status", string(outcome.Status)).
		Str("summary", outcome.Summary).
		Dur("duration", durEvidence).
		Msg("evidence verification complete")

	if outcome.Status == model.StatusPending {
		return nil, &PipelineError{
			Phase: "evidence",
			Err:   fmt.Errorf("%w: %s", ErrEvidenceInconclusive, outcome.Summary),
		}
	}

	// Phase 5: compose the final verdict.
	final := Compose(ruleStatus, outcome.Status)

	// Phase 6: append the audit record.
	rec := &model.AuditRecord{
		RequestID:      requestID,
		PatientID:      extracted.PatientID,
		TreatmentName:  treatmentName,
		DiagnosisCode:  claimedCode,
		ProviderNPI:    extracted.ProviderNPI,
		RuleStatus:     ruleStatus,
		EvidenceStatus: outcome.Status,
		FinalDecision:  final,
	}
	if err := p.Audit.Append(ctx, rec); err != nil {
		return nil, &PipelineError{Phase: "audit", Err: err}
	}

	summary := &model.AdjudicationSummary{
		RequestID:        requestID.String(),
		Extracted:        extracted,
		TreatmentName:    treatmentName,
		RuleStatus:       ruleStatus,
		RuleOutcomes:     outcomes,
		Evidence:         outcome,
		FinalDecision:    final,
		AuditID:          rec.AuditID,
		DurationExtract:  durExtract,
		DurationRules:    durRules,
		DurationEvidence: durEvidence,
		DurationTotal:    time.Since(totalStart),
	}

	log.Info().
		Str("final_decision", string(final)).
		Int64("audit_id", rec.AuditID).
		Dur("total_duration", summary.DurationTotal).
		Msg("adjudication complete")

	return summary, nil
}

func (p *Pipeline) verifierFor(kind EvidenceKind) (evidence.Verifier, error) {
	switch kind {
	case EvidenceLab:
		if p.Lab == nil {
			return nil, errors.New("lab evidence verifier not configured")
		}
		return p.Lab, nil
	case EvidenceXRay:
		if p.Image == nil {
			return nil, errors.New("image evidence verifier not configured")
		}
		return p.Image, nil
	default:
		return nil, fmt.Errorf("unknown evidence kind %q", kind)
	}
}

func countFailed(outcomes []model.RuleOutcome) int {
	n := 0
	for _, o := range outcomes {
		if !o.Passed {
			n++
		}
	}
	return n
}
