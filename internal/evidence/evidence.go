// Package evidence implements the secondary verification step of the
// adjudication pipeline. Two independent variants exist: image evidence
// (X-ray fracture detection) and lab evidence (LLM lab-value range
// checking). The variant is selected by the caller, never inferred from the
// uploaded document.
package evidence

import (
	"context"

	"github.com/gyeh/paflow/internal/model"
)

// Input carries one piece of corroborating evidence plus the request context
// the variant needs: the first claimed diagnosis code for image evidence,
// the resolved treatment name for lab evidence.
type Input struct {
	Document      []byte
	MIME          string
	ClaimedCode   string
	TreatmentName string
}

// Verifier is the polymorphic evidence check. A PENDING status means the
// verifier could not reach a verdict (no detections, no claimed code); the
// pipeline treats that as an incomplete adjudication.
type Verifier interface {
	Verify(ctx context.Context, in Input) (model.EvidenceOutcome, error)
}
