package inference

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// YOLOv7 output rows are [x, y, w, h, objectness, class scores...].
const predictionHeaderLen = 5

// ONNXDetector runs a pre-trained YOLOv7 bone-fracture model through
// onnxruntime. The session is loaded once and reused across requests;
// inference itself is CPU/GPU bound with no network involved.
type ONNXDetector struct {
	session *ort.DynamicAdvancedSession
}

// NewONNXDetector loads the model at modelPath. libraryPath optionally
// points at the onnxruntime shared library; leave empty to use the
// platform default.
func NewONNXDetector(modelPath, libraryPath string) (*ONNXDetector, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"images"}, []string{"output"}, nil)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}

	return &ONNXDetector{session: session}, nil
}

// Detect runs one inference pass and unpacks the flat output tensor into
// predictions. Rows narrower than the YOLO header are dropped.
func (d *ONNXDetector) Detect(ctx context.Context, tensor []float32) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, InputSize, InputSize), tensor)
	if err != nil {
		return nil, fmt.Errorf("build input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	defer out.Destroy()

	shape := out.GetShape()
	data := out.GetData()
	if len(shape) == 0 {
		return nil, fmt.Errorf("empty output shape")
	}

	width := int(shape[len(shape)-1])
	if width <= predictionHeaderLen || len(data) < width {
		return nil, nil
	}

	preds := make([]Prediction, 0, len(data)/width)
	for off := 0; off+width <= len(data); off += width {
		row := data[off : off+width]
		p := Prediction{
			Objectness:  row[4],
			ClassScores: append([]float32(nil), row[predictionHeaderLen:]...),
		}
		copy(p.Box[:], row[:4])
		preds = append(preds, p)
	}
	return preds, nil
}

// Close releases the onnxruntime session.
func (d *ONNXDetector) Close() error {
	if d.session != nil {
		return d.session.Destroy()
	}
	return nil
}

var _ Detector = (*ONNXDetector)(nil)
