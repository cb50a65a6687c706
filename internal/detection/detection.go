package detection

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
)

// MinConfidence is the score a raw model output must reach to become a Detection.
const MinConfidence float32 = 0.7

// Box is an axis-aligned bounding box in the pixel space of the padded input
// tensor. Because padding is only ever added after the last row and column,
// these coordinates also address the resized image directly.
type Box struct {
	XMin float32 `json:"x_min"`
	YMin float32 `json:"y_min"`
	XMax float32 `json:"x_max"`
	YMax float32 `json:"y_max"`
}

// Rect converts the box to integer pixel bounds, truncating toward the box
// interior's top-left. The result may lie partly outside an image.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(b.XMin))),
		int(math.Floor(float64(b.YMin))),
		int(math.Floor(float64(b.XMax))),
		int(math.Floor(float64(b.YMax))),
	)
}

// Detection is a single object found by the model.
type Detection struct {
	Box        Box     `json:"box"`
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Caption is the text drawn next to the box, e.g. "person, 0.98".
func (d Detection) Caption() string {
	return fmt.Sprintf("%s, %.2f", d.Label, d.Confidence)
}

// Decode turns the raw outputs of a Faster R-CNN model into detections.
//
// boxes is the flattened (n, 4) box output in xMin, yMin, xMax, yMax order;
// labels and scores hold one entry per box. The label and score of the box
// starting at linear offset i of boxes are found at index i/4. A trailing
// partial quadruple is ignored.
//
// Only boxes scoring at least MinConfidence are returned, in model order. No
// sorting or suppression happens here; the model has already done both.
func Decode(boxes []float32, labels []int64, scores []float32, names LabelMap) ([]Detection, error) {
	n := len(boxes) / 4
	if len(labels) < n || len(scores) < n {
		return nil, errors.Errorf("malformed model output: %d boxes, %d labels, %d scores",
			n, len(labels), len(scores))
	}

	detections := make([]Detection, 0, n)
	for i := 0; i+4 <= len(boxes); i += 4 {
		index := i / 4

		if scores[index] < MinConfidence {
			continue
		}
		detections = append(detections, Detection{
			Box:        Box{XMin: boxes[i], YMin: boxes[i+1], XMax: boxes[i+2], YMax: boxes[i+3]},
			Label:      names.Name(labels[index]),
			Confidence: scores[index],
		})
	}

	return detections, nil
}
