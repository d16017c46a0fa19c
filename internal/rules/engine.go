// Package rules evaluates the fixed eligibility rule set against reference
// data. All six rules run on every request; failures accumulate instead of
// short-circuiting so the audit trail names every unmet condition.
package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gyeh/paflow/internal/model"
	"github.com/gyeh/paflow/internal/normalize"
)

// Gateway is the read-only reference data surface the engine needs.
// Satisfied by refdata.Store.
type Gateway interface {
	Patient(ctx context.Context, id string) (*model.PatientRecord, error)
	Provider(ctx context.Context, npi int64) (*model.ProviderRecord, error)
	TreatmentExists(ctx context.Context, name string) (bool, error)
	Policy(ctx context.Context, insuranceID string) (*model.InsurancePolicy, error)
}

// PolicyWindowDays is the fixed-length insurance policy claim window:
// 3 years of 365 days, not calendar-year aware. A claim dated exactly this
// many days before now still passes.
const PolicyWindowDays = 1095

// Rule ids in evaluation order.
const (
	RulePatientExists       = "patient-exists"
	RuleClaimRecency        = "claim-recency"
	RuleProviderActive      = "provider-active"
	RuleTreatmentAuthorized = "treatment-authorized"
	RuleUtilization         = "utilization"
	RuleSpecialtyMatch      = "specialty-match"
)

// Expected provider specialty per treatment. Treatments without a mapping
// skip the specialty rule.
var specialtyByTreatment = map[string]string{
	"Dialysis":     "Nephrologist",
	"Chemotherapy": "Oncologist",
	"Angioplasty":  "Cardiologist",
	"Cataract":     "Ophthalmologist",
	"Fracture":     "Orthologist",
}

// Evaluate runs every rule against the gateway and returns the aggregate
// status with one outcome per rule, in fixed order. Reference misses and
// unparsable values surface as failed rules; only storage-layer errors
// abort evaluation.
func Evaluate(ctx context.Context, gw Gateway, now time.Time, patientID, treatmentName, providerNPI string) (model.Status, []model.RuleOutcome, error) {
	outcomes := make([]model.RuleOutcome, 0, 6)

	// Rule 1: patient exists.
	var patient *model.PatientRecord
	if patientID != "" {
		p, err := gw.Patient(ctx, patientID)
		if err != nil {
			return "", nil, err
		}
		patient = p
	}
	if patient != nil {
		outcomes = append(outcomes, pass(RulePatientExists, fmt.Sprintf("patient %s on file", patient.ID)))
	} else {
		outcomes = append(outcomes, fail(RulePatientExists, "patient not found"))
	}

	// Rule 2: claim date within the policy window. The resolved claim date
	// is reused by the provider-active rule below.
	var claimDate *time.Time
	if patient != nil && patient.InsuranceID != "" {
		policy, err := gw.Policy(ctx, patient.InsuranceID)
		if err != nil {
			return "", nil, err
		}
		if policy != nil {
			claimDate = normalize.ParseDate(policy.ClaimDate)
		}
	}
	switch {
	case claimDate == nil:
		outcomes = append(outcomes, fail(RuleClaimRecency, "no parsable claim date on file"))
	case daysBetween(*claimDate, now) > PolicyWindowDays:
		outcomes = append(outcomes, fail(RuleClaimRecency, fmt.Sprintf("claim date %s outside %d-day policy window", claimDate.Format("2006-01-02"), PolicyWindowDays)))
	default:
		outcomes = append(outcomes, pass(RuleClaimRecency, "claim date within policy window"))
	}

	// Rule 3: provider active on the claim date, both endpoints inclusive.
	var provider *model.ProviderRecord
	if npi, err := strconv.ParseInt(strings.TrimSpace(providerNPI), 10, 64); err == nil {
		p, err := gw.Provider(ctx, npi)
		if err != nil {
			return "", nil, err
		}
		provider = p
	}
	switch {
	case provider == nil:
		outcomes = append(outcomes, fail(RuleProviderActive, "provider not found"))
	case !activeOn(provider, claimDate):
		outcomes = append(outcomes, fail(RuleProviderActive, "provider not active on claim date"))
	default:
		outcomes = append(outcomes, pass(RuleProviderActive, "provider active on claim date"))
	}

	// Rule 4: treatment exists in the authorized treatment table.
	authorized := false
	if treatmentName != "" {
		ok, err := gw.TreatmentExists(ctx, treatmentName)
		if err != nil {
			return "", nil, err
		}
		authorized = ok
	}
	if authorized {
		outcomes = append(outcomes, pass(RuleTreatmentAuthorized, fmt.Sprintf("treatment %q authorized", treatmentName)))
	} else {
		outcomes = append(outcomes, fail(RuleTreatmentAuthorized, fmt.Sprintf("treatment %q not authorized", treatmentName)))
	}

	// Rule 5: recorded services must not exceed recorded beneficiaries.
	switch {
	case provider == nil:
		outcomes = append(outcomes, fail(RuleUtilization, "provider service/beneficiary data not found"))
	case provider.TotalServices > provider.TotalBeneficiaries:
		outcomes = append(outcomes, fail(RuleUtilization, fmt.Sprintf("provider services (%d) exceed beneficiaries (%d)", provider.TotalServices, provider.TotalBeneficiaries)))
	default:
		outcomes = append(outcomes, pass(RuleUtilization, "provider utilization within bounds"))
	}

	// Rule 6: provider specialty matches the treatment. Skipped (passing)
	// when no mapping exists or the provider type is unknown.
	expected := specialtyByTreatment[treatmentName]
	provType := ""
	if provider != nil {
		provType = provider.ProviderType
	}
	switch {
	case expected == "" || provType == "":
		outcomes = append(outcomes, pass(RuleSpecialtyMatch, "specialty check not applicable"))
	case strings.EqualFold(provType, expected):
		outcomes = append(outcomes, pass(RuleSpecialtyMatch, fmt.Sprintf("provider specialty %q matches treatment", provType)))
	default:
		outcomes = append(outcomes, fail(RuleSpecialtyMatch, fmt.Sprintf("provider type %q does not match treatment %q", provType, treatmentName)))
	}

	status := model.StatusApproved
	for _, o := range outcomes {
		if !o.Passed {
			status = model.StatusDenied
			break
		}
	}
	return status, outcomes, nil
}

// activeOn reports whether the provider's active window covers the claim
// date. All three dates must parse; both endpoints are inclusive.
func activeOn(p *model.ProviderRecord, claimDate *time.Time) bool {
	if claimDate == nil {
		return false
	}
	from := normalize.ParseDate(p.ActiveFrom)
	to := normalize.ParseDate(p.ActiveTo)
	if from == nil || to == nil {
		return false
	}
	return !claimDate.Before(*from) && !claimDate.After(*to)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func pass(id, msg string) model.RuleOutcome {
	return model.RuleOutcome{RuleID: id, Passed: true, Message: msg}
}

func fail(id, msg string) model.RuleOutcome {
	return model.RuleOutcome{RuleID: id, Passed: false, Message: msg}
}
