package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gyeh/paflow/internal/extract"
	"github.com/gyeh/paflow/internal/model"
	"github.com/gyeh/paflow/internal/normalize"
)

// Lab tests each treatment requires before it can be verified.
var requiredTestsByTreatment = map[string][]string{
	"Cataract":     {"Fasting Blood Sugar"},
	"Dialysis":     {"eGFR"},
	"Chemotherapy": {"Creatinine"},
	"Angioplasty":  {"PT", "INR"},
}

// LabExtractor pulls structured test results out of report text.
// Satisfied by llm.Client.
type LabExtractor interface {
	ExtractLabTests(ctx context.Context, reportText string, requiredTests []string) ([]model.LabTestRow, error)
}

// LabVerifier checks a lab report against the required tests for the
// resolved treatment. Evidence is APPROVED when at least one required test
// result falls outside its stated normal range, documenting medical
// necessity, and DENIED when every value is normal or no test data could be
// extracted.
type LabVerifier struct {
	extractor LabExtractor
	log       zerolog.Logger
}

// NewLabVerifier builds a lab evidence verifier.
func NewLabVerifier(extractor LabExtractor, log zerolog.Logger) *LabVerifier {
	return &LabVerifier{extractor: extractor, log: log}
}

// Verify extracts the report text, asks the LLM for the required test
// results, and classifies each against its stated normal range. LLM
// transport failures and malformed replies degrade to an empty result set,
// which reads as DENIED.
func (v *LabVerifier) Verify(ctx context.Context, in Input) (model.EvidenceOutcome, error) {
	detail := &model.LabEvidenceDetail{}

	required := requiredTestsByTreatment[in.TreatmentName]
	if len(required) == 0 {
		return model.EvidenceOutcome{
			Status:  model.StatusDenied,
			Summary: fmt.Sprintf("no required lab tests configured for treatment %q", in.TreatmentName),
			Lab:     detail,
		}, nil
	}

	text := extract.Text(in.Document, in.MIME)
	rows, err := v.extractor.ExtractLabTests(ctx, text, required)
	if err != nil {
		v.log.Warn().Err(err).Msg("lab test extraction failed, treating as no data")
		rows = nil
	}

	if len(rows) == 0 {
		return model.EvidenceOutcome{
			Status:  model.StatusDenied,
			Summary: "no valid test data extracted from lab report",
			Lab:     detail,
		}, nil
	}

	anyOutOfRange := false
	for _, name := range required {
		row, found := findTest(rows, name)
		check := model.LabTestCheck{Name: name, Found: found}
		if found {
			check.Result = row.Result
			check.NormalRange = row.NormalRange
			check.WithinRange = normalize.InRange(row.Result, row.NormalRange)
			if !check.WithinRange {
				anyOutOfRange = true
			}
		}
		detail.Checks = append(detail.Checks, check)
	}

	if anyOutOfRange {
		return model.EvidenceOutcome{
			Status:  model.StatusApproved,
			Summary: "lab report verified: abnormal value supports medical necessity",
			Lab:     detail,
		}, nil
	}
	return model.EvidenceOutcome{
		Status:  model.StatusDenied,
		Summary: "all lab values within normal range",
		Lab:     detail,
	}, nil
}

// findTest returns the first extracted row whose test name contains the
// required name, case-insensitively.
func findTest(rows []model.LabTestRow, name string) (model.LabTestRow, bool) {
	needle := strings.ToLower(name)
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Name), needle) {
			return row, true
		}
	}
	return model.LabTestRow{}, false
}

// RequiredTests exposes the per-treatment rule table, used by callers that
// want to surface what a treatment demands.
func RequiredTests(treatment string) []string {
	return requiredTestsByTreatment[treatment]
}
