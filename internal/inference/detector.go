// Package inference wraps the local object-detection model used for X-ray
// fracture verification.
package inference

import "context"

// InputSize is the square resolution the fracture model expects.
const InputSize = 640

// Prediction is one candidate detection: box geometry, objectness
// confidence, and per-class scores.
type Prediction struct {
	Box         [4]float32
	Objectness  float32
	ClassScores []float32
}

// Detector runs fracture detection over a preprocessed image tensor laid
// out as [1, 3, InputSize, InputSize] in row-major order.
type Detector interface {
	Detect(ctx context.Context, tensor []float32) ([]Prediction, error)
	Close() error
}
