// internal/compose/compose.go
package compose

import (
	"bytes"

	"print-service/internal/barcode"
	"print-service/internal/halftone"
	"print-service/internal/model"
)

// Character cell geometry in dots. Line height doubles with DoubleHeight.
const (
	cellWidth  = 12
	lineHeight = 24
)

// Style carries the decoration toggles of one text run.
type Style struct {
	Underline    bool
	Emphasis     bool
	Invert       bool
	DoubleWidth  bool
	DoubleHeight bool
}

// Rule connection bits for one character cell. A junction glyph is picked
// from the combination of directions meeting in the cell.
const (
	RuleUp uint8 = 1 << iota
	RuleDown
	RuleLeft
	RuleRight
)

// junctionGlyphs maps a connection mask to its box-drawing byte (code page
// 437). Index 0 renders as a blank cell.
var junctionGlyphs = [16]byte{
	0x20, // none
	0xB3, // up
	0xB3, // down
	0xB3, // up|down
	0xC4, // left
	0xD9, // up|left
	0xBF, // down|left
	0xB4, // up|down|left
	0xC4, // right
	0xC0, // up|right
	0xDA, // down|right
	0xC3, // up|down|right
	0xC4, // left|right
	0xC1, // up|left|right
	0xC2, // down|left|right
	0xC5, // up|down|left|right
}

// emitter is the per-family byte generator behind the composer.
type emitter interface {
	begin(buf *bytes.Buffer, opts model.Options)
	feed(buf *bytes.Buffer, dots int)
	style(buf *bytes.Buffer, s Style)
	text(buf *bytes.Buffer, s string)
	imageChunk(buf *bytes.Buffer, bm halftone.MonochromeBitmap, fromRow, rows int)
	maxChunkRows() int
	barcode(buf *bytes.Buffer, sym barcode.Symbology, payload []byte)
	qr(buf *bytes.Buffer, data []byte, module int)
	finish(buf *bytes.Buffer, cut bool)
}

func newEmitter(family model.PrinterFamily) emitter {
	switch family {
	case model.FamilySII:
		return siiEmitter{}
	case model.FamilyStar:
		return starEmitter{}
	default:
		return escposEmitter{}
	}
}

// Composer assembles a family-specific command stream. It keeps a running
// Y position in dots; content calls advance it and Finish closes the
// declared print area at the furthest point reached.
type Composer struct {
	family model.PrinterFamily
	opts   model.Options
	em     emitter
	buf    bytes.Buffer

	y    int // current position
	maxY int // bottom of the bounding box
}

// New starts a document. The opening sequence (reset, orientation, margins)
// is emitted immediately.
func New(family model.PrinterFamily, opts model.Options) *Composer {
	opts.Normalize()
	c := &Composer{family: family, opts: opts, em: newEmitter(family)}
	c.em.begin(&c.buf, opts)
	return c
}

// MoveTo positions at an absolute Y (dots). Moving backwards is ignored;
// receipt media only advances.
func (c *Composer) MoveTo(y int) {
	if y <= c.y {
		return
	}
	c.em.feed(&c.buf, y-c.y)
	c.setY(y)
}

// Advance feeds by a relative amount.
func (c *Composer) Advance(dy int) { c.MoveTo(c.y + dy) }

// Text writes one styled text run and advances a line.
func (c *Composer) Text(s string, style Style) {
	c.em.style(&c.buf, style)
	c.em.text(&c.buf, s)
	h := lineHeight
	if style.DoubleHeight {
		h *= 2
	}
	c.em.feed(&c.buf, h)
	c.setY(c.y + h)
}

// Rule renders one row of rule cells from their connection masks and
// advances a line. Horizontal runs meeting vertical runs resolve to corner
// and tee glyphs via the junction table.
func (c *Composer) Rule(cells []uint8) {
	glyphs := make([]byte, len(cells))
	for i, mask := range cells {
		glyphs[i] = junctionGlyphs[mask&0x0F]
	}
	c.em.style(&c.buf, Style{})
	c.em.text(&c.buf, string(glyphs))
	c.em.feed(&c.buf, lineHeight)
	c.setY(c.y + lineHeight)
}

// Image embeds a bitmap, chunked to the family's per-command scan-line
// limit, and advances past it.
func (c *Composer) Image(bm halftone.MonochromeBitmap) {
	limit := c.em.maxChunkRows()
	for row := 0; row < bm.Height; row += limit {
		rows := bm.Height - row
		if rows > limit {
			rows = limit
		}
		c.em.imageChunk(&c.buf, bm, row, rows)
	}
	c.setY(c.y + bm.Height)
}

// Barcode embeds a symbol after the payload byte transform.
func (c *Composer) Barcode(sym barcode.Symbology, payload []byte, height int) {
	c.em.barcode(&c.buf, sym, barcode.Transform(c.family, sym, payload))
	c.setY(c.y + height)
}

// QR embeds a QR symbol with the given module size.
func (c *Composer) QR(data []byte, module int) {
	c.em.qr(&c.buf, data, module)
}

// Finish feeds to the bottom of the bounding box, cuts if configured, and
// returns the assembled stream. The trailing feed is the closing bounding-box
// declaration: roll media has no explicit page close, so the document height
// is fixed by how far the paper advanced. The composer is spent afterwards.
func (c *Composer) Finish() []byte {
	c.MoveTo(c.maxY)
	c.em.finish(&c.buf, c.opts.Cut)
	return c.buf.Bytes()
}

func (c *Composer) setY(y int) {
	c.y = y
	if y > c.maxY {
		c.maxY = y
	}
}

// referenceDPI is the head density landscape rasters are laid out at.
const referenceDPI = 203

// ComposeImage is the direct-image path: halftone a raster (rotating it
// first for landscape emulation) and wrap it in a complete document.
func ComposeImage(family model.PrinterFamily, opts model.Options, img halftone.RasterImage) []byte {
	opts.Normalize()
	if opts.Landscape {
		img = img.Rotate90()
		// A 180 dpi head needs proportionally fewer dots for the same
		// physical size.
		if opts.Resolution != referenceDPI {
			img = img.Scale(
				img.Width*opts.Resolution/referenceDPI,
				img.Height*opts.Resolution/referenceDPI)
		}
	}
	bm := halftone.Encode(img, uint8(opts.Threshold), opts.Gamma, true)

	c := New(family, opts)
	c.Image(bm)
	return c.Finish()
}
