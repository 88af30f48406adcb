package compose

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"print-service/internal/barcode"
	"print-service/internal/halftone"
	"print-service/internal/model"
)

func TestComposeTextDocumentEscpos(t *testing.T) {
	c := New(model.FamilyESCPOS, model.Options{Threshold: 128})
	c.Text("HI", Style{Emphasis: true})
	out := c.Finish()

	var want bytes.Buffer
	want.Write([]byte{0x1B, 0x40})
	want.Write([]byte{0x1D, 0x4C, 0x00, 0x00})
	width := model.DefaultCharsPerLine * cellWidth
	want.Write([]byte{0x1D, 0x57, byte(width), byte(width >> 8)})
	want.Write([]byte{0x1B, 0x2D, 0x00})
	want.Write([]byte{0x1B, 0x45, 0x01})
	want.Write([]byte{0x1D, 0x42, 0x00})
	want.Write([]byte{0x1D, 0x21, 0x00})
	want.WriteString("HI")
	want.Write([]byte{0x1B, 0x4A, byte(lineHeight)})

	assert.Equal(t, want.Bytes(), out)
}

func TestComposeMarginsAndUpsideDown(t *testing.T) {
	opts := model.Options{MarginLeft: 4, MarginRight: 2, UpsideDown: true, Threshold: 128}
	c := New(model.FamilyESCPOS, opts)
	out := c.Finish()

	assert.True(t, bytes.HasPrefix(out, []byte{0x1B, 0x40, 0x1B, 0x7B, 0x01}))
	// Left margin 4 cells, print width narrowed by both margins.
	left := 4 * cellWidth
	width := (model.DefaultCharsPerLine - 6) * cellWidth
	assert.Contains(t, string(out), string([]byte{0x1D, 0x4C, byte(left), byte(left >> 8)}))
	assert.Contains(t, string(out), string([]byte{0x1D, 0x57, byte(width), byte(width >> 8)}))
}

func TestComposeRuleJunctions(t *testing.T) {
	c := New(model.FamilyESCPOS, model.Options{Threshold: 128})
	c.Rule([]uint8{
		RuleDown | RuleRight,
		RuleLeft | RuleRight,
		RuleDown | RuleLeft | RuleRight,
		RuleLeft | RuleRight,
		RuleDown | RuleLeft,
	})
	out := c.Finish()

	assert.Contains(t, string(out), string([]byte{0xDA, 0xC4, 0xC2, 0xC4, 0xBF}))
}

func TestComposeImageChunking(t *testing.T) {
	bm := halftone.MonochromeBitmap{Width: 8, Height: 300, Stride: 1, Rows: make([]byte, 300)}
	c := New(model.FamilyESCPOS, model.Options{Threshold: 128})
	c.Image(bm)
	out := c.Finish()

	// 300 scan lines split as 128+128+44.
	header := []byte{0x1D, 0x76, 0x30, 0x00, 0x01, 0x00}
	assert.Equal(t, 3, bytes.Count(out, header))
	assert.Contains(t, string(out), string(append(header, 128, 0)))
	assert.Contains(t, string(out), string(append(header, 44, 0)))
}

func TestComposeMoveToNeverRegresses(t *testing.T) {
	c := New(model.FamilyESCPOS, model.Options{Threshold: 128})
	c.MoveTo(100)
	before := len(c.buf.Bytes())
	c.MoveTo(50) // backwards: no bytes
	assert.Equal(t, before, len(c.buf.Bytes()))
	c.MoveTo(130)
	assert.Greater(t, len(c.buf.Bytes()), before)
}

func TestComposeStarFraming(t *testing.T) {
	opts := model.Options{Cut: true, Threshold: 128}
	c := New(model.FamilyStar, opts)
	c.Text("RECEIPT", Style{})
	out := c.Finish()

	assert.True(t, bytes.HasPrefix(out, []byte{0x1B, 0x40}))
	// Cut, then the trailing status request that live sessions strip.
	assert.True(t, bytes.HasSuffix(out, []byte{0x1B, 0x64, 0x03, 0x1B, 0x06, 0x01}))
	// Star feeds with ESC I.
	assert.Contains(t, string(out), string([]byte{0x1B, 0x49, byte(lineHeight)}))
}

func TestComposeBarcodeAppliesTransform(t *testing.T) {
	c := New(model.FamilyESCPOS, model.Options{Threshold: 128})
	c.Barcode(barcode.Codabar, []byte("1234"), 80)
	out := c.Finish()

	// GS k with the Codabar selector and the wrapped payload.
	assert.Contains(t, string(out), string([]byte{0x1D, 0x6B, 71, 6, 'A', '1', '2', '3', '4', 'A'}))
}

func TestComposeQREscpos(t *testing.T) {
	c := New(model.FamilyESCPOS, model.Options{Threshold: 128})
	c.QR([]byte("https://example.test"), 4)
	out := c.Finish()

	assert.Contains(t, string(out), string([]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x43, 0x04}))
	assert.Contains(t, string(out), "https://example.test")
}

func TestComposeImageLandscape(t *testing.T) {
	// 2x1 raster: black then white. Landscape rotates it to 1x2 with black on
	// top; with diffusion the single black pixel must survive.
	img := halftone.RasterImage{Width: 2, Height: 1, Pix: []byte{
		0, 0, 0, 255,
		255, 255, 255, 255,
	}}
	opts := model.Options{Landscape: true, Threshold: 128, Gamma: 1.0}
	out := ComposeImage(model.FamilyESCPOS, opts, img)

	header := []byte{0x1D, 0x76, 0x30, 0x00, 0x01, 0x00, 0x02, 0x00}
	i := bytes.Index(out, header)
	assert.GreaterOrEqual(t, i, 0)
	rows := out[i+len(header) : i+len(header)+2]
	assert.Equal(t, []byte{0x80, 0x00}, rows)
}

func TestComposeImageLandscapeResolution(t *testing.T) {
	// 8x4 solid black rotates to 4x8 at 203 dpi; a 180 dpi head gets the
	// raster rescaled to 3x7 so the physical size matches.
	img := halftone.RasterImage{Width: 8, Height: 4, Pix: make([]byte, 8*4*4)}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	base := model.Options{Landscape: true, Threshold: 128, Gamma: 1.0}

	lo, hi := base, base
	lo.Resolution = 180
	hi.Resolution = 203
	outLo := ComposeImage(model.FamilyESCPOS, lo, img)
	outHi := ComposeImage(model.FamilyESCPOS, hi, img)

	assert.NotEqual(t, outHi, outLo)
	assert.Contains(t, string(outHi), string([]byte{0x1D, 0x76, 0x30, 0x00, 0x01, 0x00, 0x08, 0x00}))
	assert.Contains(t, string(outLo), string([]byte{0x1D, 0x76, 0x30, 0x00, 0x01, 0x00, 0x07, 0x00}))
}

func TestComposeDeterministic(t *testing.T) {
	img := halftone.RasterImage{Width: 16, Height: 16, Pix: make([]byte, 16*16*4)}
	for i := range img.Pix {
		img.Pix[i] = byte(i * 13)
	}
	opts := model.Options{Threshold: 140, Gamma: 1.8}
	assert.Equal(t,
		ComposeImage(model.FamilySII, opts, img),
		ComposeImage(model.FamilySII, opts, img))
}
