package imaging

import (
	"strings"

	"github.com/pkg/errors"
)

// Alignment is the multiple both tensor dimensions are padded to.
const Alignment = 32

// Means are the per-channel values subtracted from every pixel, in tensor
// channel order: blue, green, red.
var Means = [3]float32{102.9801, 115.9465, 122.7717}

// PadMode selects how pixels are placed into the padded tensor.
type PadMode int

const (
	// PadTrailing copies every pixel to the same (x, y) in the tensor and
	// leaves the rows and columns past the image edge at zero.
	PadTrailing PadMode = iota

	// PadLegacy copies only rows [paddedH-h, h) and columns [paddedW-w, w),
	// the loop bounds of the original sample pipeline. Everything else stays
	// zero, so for sizes that are not multiples of 32 the first rows and
	// columns of the image are dropped.
	PadLegacy
)

func (m PadMode) String() string {
	if m == PadLegacy {
		return "legacy"
	}
	return "trailing"
}

// ParsePadMode converts "trailing" or "legacy" into a PadMode.
func ParsePadMode(s string) (PadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "trailing":
		return PadTrailing, nil
	case "legacy":
		return PadLegacy, nil
	default:
		return PadTrailing, errors.Errorf("unknown padding mode %q (want trailing or legacy)", s)
	}
}

// PaddedSize rounds n up to the next multiple of Alignment.
func PaddedSize(n int) int {
	return (n + Alignment - 1) / Alignment * Alignment
}

// Tensor is a dense channel-first float32 array of shape
// (3, paddedHeight, paddedWidth). Channels are blue, green, red with Means
// subtracted. A Tensor is not modified after it has been built.
type Tensor struct {
	Shape [3]int
	Data  []float32
}

// Channels is always 3.
func (t *Tensor) Channels() int { return t.Shape[0] }

// Height is the padded height.
func (t *Tensor) Height() int { return t.Shape[1] }

// Width is the padded width.
func (t *Tensor) Width() int { return t.Shape[2] }

// At returns the element at channel c, row y, column x.
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.Shape[1]+y)*t.Shape[2]+x]
}

// Dims returns the shape as int64s, the form inference runtimes expect.
func (t *Tensor) Dims() []int64 {
	return []int64{int64(t.Shape[0]), int64(t.Shape[1]), int64(t.Shape[2])}
}

// buildTensor fills a new tensor from an RGBA pixel buffer of w×h pixels.
func buildTensor(pix []uint8, stride, w, h int, mode PadMode) *Tensor {
	ph, pw := PaddedSize(h), PaddedSize(w)
	t := &Tensor{
		Shape: [3]int{3, ph, pw},
		Data:  make([]float32, 3*ph*pw),
	}
	plane := ph * pw
	blue := t.Data[:plane]
	green := t.Data[plane : 2*plane]
	red := t.Data[2*plane:]

	y0, x0 := 0, 0
	if mode == PadLegacy {
		y0, x0 = ph-h, pw-w
	}

	for y := y0; y < h; y++ {
		row := pix[y*stride : y*stride+w*4]
		offset := y * pw
		for x := x0; x < w; x++ {
			p := row[x*4 : x*4+3]
			blue[offset+x] = float32(p[2]) - Means[0]
			green[offset+x] = float32(p[1]) - Means[1]
			red[offset+x] = float32(p[0]) - Means[2]
		}
	}

	return t
}
