package imaging

import (
	"bytes"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"

	"github.com/ironsheep/frcnn-detect/internal/detection"
)

// imagingProcessor is the Processor backed by disintegration/imaging. Frames
// hold *image.NRGBA buffers.
type imagingProcessor struct {
	padding PadMode
	style   *style
}

func (p *imagingProcessor) Kind() Kind { return KindImaging }

func (p *imagingProcessor) Preprocess(raw []byte) (*Frame, error) {
	src, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Processor: KindImaging, Cause: err}
	}
	if src.Bounds().Empty() {
		return nil, &DecodeError{Processor: KindImaging, Cause: errors.New("image has no pixels")}
	}

	img := imaging.Clone(src)

	// imaging rotates counter-clockwise.
	orientation := ReadOrientation(raw)
	switch orientation {
	case OriginBottomRight:
		img = imaging.Rotate180(img)
	case OriginRightTop:
		img = imaging.Rotate270(img)
	case OriginLeftBottom:
		img = imaging.Rotate90(img)
	}

	b := img.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy())
	if w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(img, w, h, imaging.Linear)
	}

	return newFrame(img, img.Pix, img.Stride, orientation), nil
}

func (p *imagingProcessor) Tensor(f *Frame) *Tensor {
	return buildTensor(f.pix, f.stride, f.width, f.height, p.padding)
}

func (p *imagingProcessor) Render(f *Frame, detections []detection.Detection) ([]byte, error) {
	dc := gg.NewContextForImage(f.img)
	dc.SetFontFace(truetype.NewFace(p.style.font, &truetype.Options{Size: p.style.size}))

	for _, d := range detections {
		drawOutline(dc, d.Box, p.style)

		dc.SetColor(p.style.text)
		dc.DrawStringAnchored(d.Caption(), float64(d.Box.XMin), float64(d.Box.YMin), 0, 1)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dc.Image(), imaging.JPEG, imaging.JPEGQuality(p.style.quality)); err != nil {
		return nil, errors.Wrap(err, "failed to encode result image")
	}
	return buf.Bytes(), nil
}

// drawOutline strokes the four edges of box.
func drawOutline(dc *gg.Context, box detection.Box, st *style) {
	x1, y1 := float64(box.XMin), float64(box.YMin)
	x2, y2 := float64(box.XMax), float64(box.YMax)

	dc.SetColor(st.accent)
	dc.SetLineWidth(st.stroke)
	dc.DrawLine(x1, y1, x2, y1)
	dc.DrawLine(x2, y1, x2, y2)
	dc.DrawLine(x2, y2, x1, y2)
	dc.DrawLine(x1, y2, x1, y1)
	dc.Stroke()
}
