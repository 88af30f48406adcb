package halftone

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayRaster(w, h int, level byte) RasterImage {
	r := RasterImage{Width: w, Height: h, Pix: make([]byte, w*h*4)}
	for i := 0; i < w*h; i++ {
		r.Pix[i*4+0] = level
		r.Pix[i*4+1] = level
		r.Pix[i*4+2] = level
		r.Pix[i*4+3] = 0xFF
	}
	return r
}

func TestEncodeThresholdPacking(t *testing.T) {
	// 10 black pixels pack into one full byte plus two high bits.
	bm := Encode(grayRaster(10, 1, 0x00), 128, 1.0, false)
	assert.Equal(t, 2, bm.Stride)
	assert.Equal(t, []byte{0xFF, 0xC0}, bm.Rows)

	// White never prints.
	bm = Encode(grayRaster(10, 1, 0xFF), 128, 1.0, false)
	assert.Equal(t, []byte{0x00, 0x00}, bm.Rows)
}

func TestEncodeAlphaCompositesOverWhite(t *testing.T) {
	// Fully transparent black reads as white.
	r := RasterImage{Width: 8, Height: 1, Pix: make([]byte, 32)}
	bm := Encode(r, 128, 1.0, false)
	assert.Equal(t, []byte{0x00}, bm.Rows)
}

func TestEncodeErrorDiffusionResidualSplit(t *testing.T) {
	// Mid gray at the threshold: the first pixel stays light and pushes half
	// its residual right, tipping the second pixel dark.
	bm := Encode(grayRaster(2, 1, 128), 128, 1.0, true)
	assert.Equal(t, []byte{0x40}, bm.Rows)

	// The other half goes below: a second row of the same gray flips its
	// first pixel dark from the carried error alone.
	bm = Encode(grayRaster(2, 2, 128), 128, 1.0, true)
	assert.Equal(t, byte(0x80), bm.Row(1)[0]&0x80)
}

func TestEncodeGammaLifting(t *testing.T) {
	// Dark gray prints at gamma 1.0 but is lifted above the threshold at
	// gamma 2.0.
	dark := Encode(grayRaster(1, 1, 64), 128, 1.0, false)
	assert.Equal(t, []byte{0x80}, dark.Rows)

	lifted := Encode(grayRaster(1, 1, 64), 128, 2.0, false)
	assert.Equal(t, []byte{0x00}, lifted.Rows)
}

func TestEncodeDeterministic(t *testing.T) {
	r := RasterImage{Width: 13, Height: 7, Pix: make([]byte, 13*7*4)}
	for i := range r.Pix {
		r.Pix[i] = byte(i * 37)
	}
	a := Encode(r, 160, 1.8, true)
	b := Encode(r, 160, 1.8, true)
	assert.Equal(t, a.Rows, b.Rows)
}

func TestRotate90(t *testing.T) {
	// 2x1 image: left pixel black, right white. Rotated clockwise it becomes
	// 1x2 with black on top.
	r := RasterImage{Width: 2, Height: 1, Pix: []byte{
		0, 0, 0, 255,
		255, 255, 255, 255,
	}}
	rot := r.Rotate90()
	assert.Equal(t, 1, rot.Width)
	assert.Equal(t, 2, rot.Height)
	assert.Equal(t, byte(0), rot.Pix[0])
	assert.Equal(t, byte(255), rot.Pix[4])
}

func TestScaleNearestNeighbor(t *testing.T) {
	// 2x1: black then white. Doubling repeats each source pixel; halving
	// keeps the nearest one.
	r := RasterImage{Width: 2, Height: 1, Pix: []byte{
		0, 0, 0, 255,
		255, 255, 255, 255,
	}}

	up := r.Scale(4, 2)
	assert.Equal(t, 4, up.Width)
	assert.Equal(t, 2, up.Height)
	for y := 0; y < 2; y++ {
		assert.Equal(t, []byte{
			0, 0, 0, 255, 0, 0, 0, 255,
			255, 255, 255, 255, 255, 255, 255, 255,
		}, up.Pix[y*16:(y+1)*16], "row %d", y)
	}

	down := r.Scale(1, 1)
	assert.Equal(t, []byte{0, 0, 0, 255}, down.Pix)

	assert.Equal(t, r, r.Scale(2, 1))
}

func TestDecodeRasterPNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	r, err := DecodeRaster(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Width)
	assert.Equal(t, 2, r.Height)
	assert.Equal(t, byte(255), r.Pix[0])

	_, err = DecodeRaster(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}
