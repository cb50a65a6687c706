package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/frcnn-detect/internal/detection"
)

// TargetSize is the length, in pixels, of the shorter image edge after Preprocess.
const TargetSize = 800

// Kind selects the raster library backing a Processor.
type Kind string

const (
	// KindImaging uses github.com/disintegration/imaging for raster work and
	// github.com/fogleman/gg for drawing.
	KindImaging Kind = "imaging"

	// KindBild uses github.com/anthonynsimon/bild for raster work and
	// golang.org/x/image/font for drawing.
	KindBild Kind = "bild"
)

// Kinds lists every available back-end.
var Kinds = []Kind{KindImaging, KindBild}

// ParseKind converts a name such as "imaging" or "bild" into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindImaging, KindBild:
		return k, nil
	default:
		return "", errors.Errorf("unknown image processor %q (want imaging or bild)", s)
	}
}

// Processor is one implementation of the three stage image pipeline.
//
// Implementations hold no per-request state and are safe for concurrent use.
// A Frame produced by one Processor may be passed to another.
type Processor interface {
	// Kind reports which back-end this is.
	Kind() Kind

	// Preprocess decodes raw image bytes, applies the EXIF orientation and
	// scales the image so its shorter edge is TargetSize pixels.
	Preprocess(raw []byte) (*Frame, error)

	// Tensor builds the padded, mean-subtracted BGR input tensor for a frame.
	Tensor(f *Frame) *Tensor

	// Render draws detections onto a copy of the frame and returns it as JPEG.
	Render(f *Frame, detections []detection.Detection) ([]byte, error)
}

// Frame is a decoded, oriented and resized image owned by a single request.
//
// The pixel buffer is 8-bit RGBA with every alpha byte set to 255, so only the
// three color channels carry information.
type Frame struct {
	img         image.Image
	pix         []uint8
	stride      int
	width       int
	height      int
	orientation Orientation
}

func newFrame(img image.Image, pix []uint8, stride int, o Orientation) *Frame {
	b := img.Bounds()
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 0xff
	}
	return &Frame{
		img:         img,
		pix:         pix,
		stride:      stride,
		width:       b.Dx(),
		height:      b.Dy(),
		orientation: o,
	}
}

// FrameFromImage wraps pixels that are already decoded, oriented and scaled.
func FrameFromImage(img image.Image) *Frame {
	nrgba := imaging.Clone(img)
	return newFrame(nrgba, nrgba.Pix, nrgba.Stride, OriginTopLeft)
}

// Width is the frame width in pixels.
func (f *Frame) Width() int { return f.width }

// Height is the frame height in pixels.
func (f *Frame) Height() int { return f.height }

// Image exposes the frame as a standard image. Callers must not modify it.
func (f *Frame) Image() image.Image { return f.img }

// Orientation is the EXIF origin that was applied while loading.
func (f *Frame) Orientation() Orientation { return f.orientation }

// RGB returns the color channels of the pixel at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := y*f.stride + x*4
	return f.pix[i], f.pix[i+1], f.pix[i+2]
}

// DecodeError reports raw bytes that are not a supported image.
type DecodeError struct {
	Processor Kind
	Cause     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image (%s): %v", e.Processor, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// RenderOptions controls how detections are drawn.
type RenderOptions struct {
	// AccentColor is the box outline color as hex, e.g. "#FF0000".
	AccentColor string

	// TextColor is the caption color as hex.
	TextColor string

	// FontSize is the caption size in points.
	FontSize float64

	// StrokeWidth is the box outline width in pixels.
	StrokeWidth float64

	// JPEGQuality is the output quality, 1-100.
	JPEGQuality int

	// FontDirs are searched in order for a TrueType font. Nil means
	// DefaultFontDirs; when nothing is found the bundled Go font is used.
	FontDirs []string
}

// Options configures a Processor.
type Options struct {
	Padding PadMode
	Render  RenderOptions

	// Logger receives a line naming the caption font. Nil discards it.
	Logger *zap.SugaredLogger
}

// DefaultOptions returns the settings of the reference pipeline.
func DefaultOptions() Options {
	return Options{
		Padding: PadTrailing,
		Render: RenderOptions{
			AccentColor: "#FF0000",
			TextColor:   "#FFFFFF",
			FontSize:    32,
			StrokeWidth: 2,
			JPEGQuality: 100,
		},
	}
}

// style is the resolved form of RenderOptions shared by both back-ends.
type style struct {
	accent   color.Color
	text     color.Color
	font     *truetype.Font
	fontName string
	size     float64
	stroke   float64
	quality  int
}

func newStyle(o RenderOptions) (*style, error) {
	accent, err := colorful.Hex(o.AccentColor)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid accent color %q", o.AccentColor)
	}
	text, err := colorful.Hex(o.TextColor)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid text color %q", o.TextColor)
	}
	if o.FontSize <= 0 {
		return nil, errors.Errorf("font size must be positive, got %v", o.FontSize)
	}
	if o.StrokeWidth <= 0 {
		return nil, errors.Errorf("stroke width must be positive, got %v", o.StrokeWidth)
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		return nil, errors.Errorf("jpeg quality must be within 1-100, got %d", o.JPEGQuality)
	}

	dirs := o.FontDirs
	if dirs == nil {
		dirs = DefaultFontDirs
	}
	font, name, err := ResolveFont(dirs)
	if err != nil {
		return nil, err
	}

	return &style{
		accent:   accent,
		text:     text,
		font:     font,
		fontName: name,
		size:     o.FontSize,
		stroke:   o.StrokeWidth,
		quality:  o.JPEGQuality,
	}, nil
}

// New builds the Processor for kind. The caption font is resolved here, once,
// and reused for every Render call.
func New(kind Kind, opts Options) (Processor, error) {
	st, err := newStyle(opts.Render)
	if err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.Debugw("caption font resolved", "processor", string(kind), "font", st.fontName)
	}

	switch kind {
	case KindImaging:
		return &imagingProcessor{padding: opts.Padding, style: st}, nil
	case KindBild:
		return &bildProcessor{padding: opts.Padding, style: st}, nil
	default:
		return nil, errors.Errorf("unknown image processor %q", kind)
	}
}

// scaledSize returns the dimensions after scaling the shorter edge to
// TargetSize. Products are truncated, so the short edge can land on 799 when
// float32 rounding falls just below 800.
func scaledSize(width, height int) (int, int) {
	ratio := float32(TargetSize) / float32(min(width, height))
	return int(ratio * float32(width)), int(ratio * float32(height))
}
