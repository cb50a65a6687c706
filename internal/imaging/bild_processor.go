package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"math"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/frcnn-detect/internal/detection"
)

// bildProcessor is the Processor backed by anthonynsimon/bild. Frames hold
// *image.RGBA buffers carrying the straight color of every pixel with alpha
// dropped, the same values the imaging back-end keeps.
type bildProcessor struct {
	padding PadMode
	style   *style
}

func (p *bildProcessor) Kind() Kind { return KindBild }

func (p *bildProcessor) Preprocess(raw []byte) (*Frame, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Processor: KindBild, Cause: err}
	}
	if src.Bounds().Empty() {
		return nil, &DecodeError{Processor: KindBild, Cause: errors.New("image has no pixels")}
	}

	img := opaqueRGBA(src)

	orientation := ReadOrientation(raw)
	switch orientation {
	case OriginBottomRight:
		img = transform.FlipH(transform.FlipV(img))
	case OriginRightTop:
		img = transform.FlipH(transpose(img))
	case OriginLeftBottom:
		img = transform.FlipV(transpose(img))
	}

	b := img.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy())
	if w != b.Dx() || h != b.Dy() {
		img = transform.Resize(img, w, h, transform.Linear)
	}

	return newFrame(img, img.Pix, img.Stride, orientation), nil
}

func (p *bildProcessor) Tensor(f *Frame) *Tensor {
	return buildTensor(f.pix, f.stride, f.width, f.height, p.padding)
}

func (p *bildProcessor) Render(f *Frame, detections []detection.Detection) ([]byte, error) {
	dst := clone.AsRGBA(f.img)

	face := truetype.NewFace(p.style.font, &truetype.Options{Size: p.style.size})
	defer face.Close()

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(p.style.text),
		Face: face,
	}
	ascent := face.Metrics().Ascent

	accent := image.NewUniform(p.style.accent)
	stroke := max(1, int(math.Round(p.style.stroke)))

	for _, d := range detections {
		for _, edge := range outlineEdges(d.Box.Rect(), stroke) {
			draw.Draw(dst, edge.Intersect(dst.Bounds()), accent, image.Point{}, draw.Over)
		}

		drawer.Dot = fixed.Point26_6{
			X: fixed.I(int(d.Box.XMin)),
			Y: fixed.I(int(d.Box.YMin)) + ascent,
		}
		drawer.DrawString(d.Caption())
	}

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(p.style.quality)(&buf, dst); err != nil {
		return nil, errors.Wrap(err, "failed to encode result image")
	}
	return buf.Bytes(), nil
}

// outlineEdges returns the four bands, stroke pixels thick and centered on
// the edges of r, that make up its outline.
func outlineEdges(r image.Rectangle, stroke int) [4]image.Rectangle {
	lo := stroke / 2
	hi := stroke - lo

	return [4]image.Rectangle{
		image.Rect(r.Min.X-lo, r.Min.Y-lo, r.Max.X+hi, r.Min.Y+hi), // top
		image.Rect(r.Max.X-lo, r.Min.Y-lo, r.Max.X+hi, r.Max.Y+hi), // right
		image.Rect(r.Min.X-lo, r.Max.Y-lo, r.Max.X+hi, r.Max.Y+hi), // bottom
		image.Rect(r.Min.X-lo, r.Min.Y-lo, r.Min.X+hi, r.Max.Y+hi), // left
	}
}

// opaqueRGBA copies src into an opaque RGBA buffer. Translucent pixels keep
// their unpremultiplied color; clone.AsRGBA would premultiply them, which
// darkens them once alpha is forced to 255.
func opaqueRGBA(src image.Image) *image.RGBA {
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		return clone.AsRGBA(src)
	}

	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			i := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], n.Pix[i:i+b.Dx()*4])
		}
		return dst
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := y*dst.Stride + x*4
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return dst
}

// transpose mirrors img across its main diagonal. bild has no lossless
// quarter turn; a transpose followed by a flip gives one.
func transpose(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))

	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			copy(dst.Pix[x*dst.Stride+y*4:x*dst.Stride+y*4+4], src[x*4:x*4+4])
		}
	}

	return dst
}
