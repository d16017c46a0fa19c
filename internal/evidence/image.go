package evidence

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"github.com/gyeh/paflow/internal/inference"
	"github.com/gyeh/paflow/internal/model"
)

// DefaultConfidenceThreshold keeps detections whose combined objectness and
// class score clears this value.
const DefaultConfidenceThreshold = 0.5

// Model class index → bone name, in the order the fracture model was
// trained with.
var boneClasses = []string{"femur", "tibia", "radius", "ulna"}

// Detected bone → ICD-10 diagnosis code.
var boneToICD10 = map[string]string{
	"femur":  "S72.0",
	"tibia":  "S82.5",
	"radius": "S52.5",
	"ulna":   "S52.6",
}

// A claimed fracture code admits a small fixed family of sibling codes.
// Codes without an entry admit only themselves.
var allowedFractures = map[string][]string{
	"S72.0": {"S72.0", "S72.1", "S72.2", "S72.3"},
	"S82.5": {"S82.5", "S82.6", "S82.7", "S82.8"},
	"S52.5": {"S52.5", "S52.6", "S52.7", "S52.8"},
}

// ImageVerifier checks a claimed fracture diagnosis against an X-ray via
// local object-detection inference.
type ImageVerifier struct {
	detector  inference.Detector
	threshold float32
	log       zerolog.Logger
}

// NewImageVerifier builds an image evidence verifier. A non-positive
// threshold falls back to the default.
func NewImageVerifier(detector inference.Detector, threshold float32, log zerolog.Logger) *ImageVerifier {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &ImageVerifier{detector: detector, threshold: threshold, log: log}
}

// Verify decodes and preprocesses the X-ray, runs detection, maps confident
// detections to diagnosis codes, and matches them against the codes the
// claimed diagnosis admits. No claimed code or no confident detection means
// no verdict (PENDING).
func (v *ImageVerifier) Verify(ctx context.Context, in Input) (model.EvidenceOutcome, error) {
	detail := &model.ImageEvidenceDetail{ClaimedCode: in.ClaimedCode}

	if in.ClaimedCode == "" {
		return model.EvidenceOutcome{
			Status:  model.StatusPending,
			Summary: "no claimed diagnosis code to verify against",
			Image:   detail,
		}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(in.Document))
	if err != nil {
		return model.EvidenceOutcome{}, fmt.Errorf("decode x-ray image: %w", err)
	}

	preds, err := v.detector.Detect(ctx, Preprocess(img))
	if err != nil {
		return model.EvidenceOutcome{}, fmt.Errorf("fracture detection: %w", err)
	}

	classIDs := confidentClasses(preds, v.threshold)
	if len(classIDs) == 0 {
		return model.EvidenceOutcome{
			Status:  model.StatusPending,
			Summary: "no fracture detected above confidence threshold",
			Image:   detail,
		}, nil
	}

	for _, id := range classIDs {
		if id < 0 || id >= len(boneClasses) {
			v.log.Warn().Int("class_id", id).Msg("detection outside known bone classes")
			continue
		}
		bone := boneClasses[id]
		detail.DetectedBones = append(detail.DetectedBones, bone)
		detail.PredictedCodes = append(detail.PredictedCodes, boneToICD10[bone])
	}

	allowed := allowedFractures[in.ClaimedCode]
	if allowed == nil {
		allowed = []string{in.ClaimedCode}
	}
	for _, code := range detail.PredictedCodes {
		for _, a := range allowed {
			if code == a {
				detail.MatchedCodes = append(detail.MatchedCodes, code)
				break
			}
		}
	}

	if len(detail.MatchedCodes) > 0 {
		return model.EvidenceOutcome{
			Status: model.StatusApproved,
			Summary: fmt.Sprintf("fracture verified: detected %s, code %s",
				detail.DetectedBones[0], detail.MatchedCodes[0]),
			Image: detail,
		}, nil
	}
	return model.EvidenceOutcome{
		Status: model.StatusDenied,
		Summary: fmt.Sprintf("fracture verification failed: expected %s, got [%s]",
			in.ClaimedCode, strings.Join(detail.PredictedCodes, " ")),
		Image: detail,
	}, nil
}

// confidentClasses picks, for each prediction, the highest-scoring class and
// keeps it when objectness times that score clears the threshold.
func confidentClasses(preds []inference.Prediction, threshold float32) []int {
	var ids []int
	for _, p := range preds {
		if len(p.ClassScores) == 0 {
			continue
		}
		best := 0
		for i, s := range p.ClassScores {
			if s > p.ClassScores[best] {
				best = i
			}
		}
		if p.Objectness*p.ClassScores[best] > threshold {
			ids = append(ids, best)
		}
	}
	return ids
}

// Preprocess resizes the image to the model's square input resolution and
// lays it out as normalized [0,1] RGB floats, channel-first, with a batch
// dimension of one.
func Preprocess(img image.Image) []float32 {
	const size = inference.InputSize
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	plane := size * size
	tensor := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			idx := y*size + x
			tensor[idx] = float32(r>>8) / 255.0
			tensor[plane+idx] = float32(g>>8) / 255.0
			tensor[2*plane+idx] = float32(b>>8) / 255.0
		}
	}
	return tensor
}
