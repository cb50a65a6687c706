package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createCoordinateImage encodes each pixel's position in its color:
// R = x, G = y, B = 7.
func createCoordinateImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 7, 255})
		}
	}
	return img
}

func TestPaddedSize(t *testing.T) {
	tests := []struct{ in, want int }{
		{1, 32},
		{31, 32},
		{32, 32},
		{33, 64},
		{800, 800},
		{801, 832},
		{1066, 1088},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PaddedSize(tt.in), "PaddedSize(%d)", tt.in)
	}
}

func TestTensor_Shape(t *testing.T) {
	sizes := []struct{ w, h int }{
		{800, 800},
		{801, 801},
		{1066, 800},
		{800, 1422},
		{33, 1},
	}

	for _, kind := range Kinds {
		p := newTestProcessor(t, kind)
		for _, sz := range sizes {
			f := FrameFromImage(createInMemoryImage(sz.w, sz.h, color.Black))
			tensor := p.Tensor(f)

			assert.Equal(t, 3, tensor.Channels())
			assert.Zero(t, tensor.Height()%Alignment, "%dx%d height", sz.w, sz.h)
			assert.Zero(t, tensor.Width()%Alignment, "%dx%d width", sz.w, sz.h)
			assert.GreaterOrEqual(t, tensor.Height(), sz.h)
			assert.GreaterOrEqual(t, tensor.Width(), sz.w)
			assert.Less(t, tensor.Height()-sz.h, Alignment)
			assert.Less(t, tensor.Width()-sz.w, Alignment)
			assert.Len(t, tensor.Data, 3*tensor.Height()*tensor.Width())
		}
	}
}

func TestTensor_BoundaryShapes(t *testing.T) {
	p := newTestProcessor(t, KindImaging)

	exact := p.Tensor(FrameFromImage(createInMemoryImage(800, 800, color.Black)))
	assert.Equal(t, [3]int{3, 800, 800}, exact.Shape)
	assert.Equal(t, []int64{3, 800, 800}, exact.Dims())

	padded := p.Tensor(FrameFromImage(createInMemoryImage(801, 801, color.Black)))
	assert.Equal(t, [3]int{3, 832, 832}, padded.Shape)
}

func TestTensor_AllZeroImage(t *testing.T) {
	f := FrameFromImage(createInMemoryImage(800, 800, color.Black))
	tensor := newTestProcessor(t, KindBild).Tensor(f)

	for c := 0; c < 3; c++ {
		for _, pt := range []image.Point{{0, 0}, {399, 401}, {799, 799}} {
			assert.Equal(t, -Means[c], tensor.At(c, pt.Y, pt.X), "channel %d at %v", c, pt)
		}
	}
}

func TestTensor_ChannelOrderAndMeans(t *testing.T) {
	f := FrameFromImage(createCoordinateImage(33, 33))

	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			tensor := newTestProcessor(t, kind).Tensor(f)
			require.Equal(t, [3]int{3, 64, 64}, tensor.Shape)

			for _, pt := range []image.Point{{0, 0}, {5, 9}, {32, 32}, {31, 0}} {
				assert.Equal(t, float32(7)-Means[0], tensor.At(0, pt.Y, pt.X), "blue at %v", pt)
				assert.Equal(t, float32(pt.Y)-Means[1], tensor.At(1, pt.Y, pt.X), "green at %v", pt)
				assert.Equal(t, float32(pt.X)-Means[2], tensor.At(2, pt.Y, pt.X), "red at %v", pt)
			}

			// Padding after the last row and column stays zero.
			for c := 0; c < 3; c++ {
				assert.Zero(t, tensor.At(c, 10, 33))
				assert.Zero(t, tensor.At(c, 33, 10))
				assert.Zero(t, tensor.At(c, 63, 63))
			}
		})
	}
}

func TestTensor_LegacyPadding(t *testing.T) {
	opts := testOptions(t)
	opts.Padding = PadLegacy
	p, err := New(KindImaging, opts)
	require.NoError(t, err)

	tensor := p.Tensor(FrameFromImage(createCoordinateImage(33, 33)))
	require.Equal(t, [3]int{3, 64, 64}, tensor.Shape)

	// Only rows and columns in [64-33, 33) = [31, 33) are copied.
	for _, pt := range []image.Point{{31, 31}, {32, 31}, {31, 32}, {32, 32}} {
		assert.Equal(t, float32(pt.X)-Means[2], tensor.At(2, pt.Y, pt.X), "red at %v", pt)
	}
	for _, pt := range []image.Point{{0, 0}, {30, 31}, {31, 30}, {5, 32}, {33, 33}} {
		assert.Zero(t, tensor.At(2, pt.Y, pt.X), "red at %v", pt)
	}
}

func TestTensor_LegacyMatchesTrailingOnAlignedSizes(t *testing.T) {
	f := FrameFromImage(createCoordinateImage(64, 96))

	trailing := newTestProcessor(t, KindBild).Tensor(f)

	opts := testOptions(t)
	opts.Padding = PadLegacy
	p, err := New(KindBild, opts)
	require.NoError(t, err)
	legacy := p.Tensor(f)

	assert.Equal(t, trailing.Shape, legacy.Shape)
	assert.Equal(t, trailing.Data, legacy.Data)
}

func TestParsePadMode(t *testing.T) {
	m, err := ParsePadMode("legacy")
	require.NoError(t, err)
	assert.Equal(t, PadLegacy, m)
	assert.Equal(t, "legacy", m.String())

	m, err = ParsePadMode("")
	require.NoError(t, err)
	assert.Equal(t, PadTrailing, m)
	assert.Equal(t, "trailing", m.String())

	_, err = ParsePadMode("leading")
	assert.Error(t, err)
}
