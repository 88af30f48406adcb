// internal/compose/emitters.go
package compose

import (
	"bytes"

	"print-service/internal/barcode"
	"print-service/internal/halftone"
	"print-service/internal/model"
)

// writeFeed emits dot feeds in chunks; the feed commands carry one length
// byte.
func writeFeed(buf *bytes.Buffer, prefix []byte, dots int) {
	for dots > 0 {
		n := dots
		if n > 255 {
			n = 255
		}
		buf.Write(prefix)
		buf.WriteByte(byte(n))
		dots -= n
	}
}

// ---------------------------------------------------------------------------
// escpos-like

type escposEmitter struct{}

func (escposEmitter) begin(buf *bytes.Buffer, opts model.Options) {
	buf.Write([]byte{0x1B, 0x40}) // initialize
	if opts.UpsideDown {
		buf.Write([]byte{0x1B, 0x7B, 0x01})
	}
	left := opts.MarginLeft * cellWidth
	buf.Write([]byte{0x1D, 0x4C, byte(left), byte(left >> 8)})
	width := (opts.CharsPerLine - opts.MarginLeft - opts.MarginRight) * cellWidth
	buf.Write([]byte{0x1D, 0x57, byte(width), byte(width >> 8)})
}

func (escposEmitter) feed(buf *bytes.Buffer, dots int) {
	writeFeed(buf, []byte{0x1B, 0x4A}, dots)
}

func (escposEmitter) style(buf *bytes.Buffer, s Style) {
	buf.Write([]byte{0x1B, 0x2D, b01(s.Underline)})
	buf.Write([]byte{0x1B, 0x45, b01(s.Emphasis)})
	buf.Write([]byte{0x1D, 0x42, b01(s.Invert)})
	var size byte
	if s.DoubleWidth {
		size |= 0x10
	}
	if s.DoubleHeight {
		size |= 0x01
	}
	buf.Write([]byte{0x1D, 0x21, size})
}

func (escposEmitter) text(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
}

func (escposEmitter) imageChunk(buf *bytes.Buffer, bm halftone.MonochromeBitmap, fromRow, rows int) {
	buf.Write([]byte{0x1D, 0x76, 0x30, 0x00,
		byte(bm.Stride), byte(bm.Stride >> 8),
		byte(rows), byte(rows >> 8)})
	buf.Write(bm.Rows[fromRow*bm.Stride : (fromRow+rows)*bm.Stride])
}

func (escposEmitter) maxChunkRows() int { return 128 }

var escposSymbologies = map[barcode.Symbology]byte{
	barcode.UPCE:    66,
	barcode.Codabar: 71,
	barcode.Code93:  72,
	barcode.Code128: 73,
}

func (escposEmitter) barcode(buf *bytes.Buffer, sym barcode.Symbology, payload []byte) {
	m, ok := escposSymbologies[sym]
	if !ok {
		return
	}
	buf.Write([]byte{0x1D, 0x6B, m, byte(len(payload))})
	buf.Write(payload)
}

func (escposEmitter) qr(buf *bytes.Buffer, data []byte, module int) {
	if module < 1 || module > 16 {
		module = 3
	}
	buf.Write([]byte{0x1D, 0x28, 0x6B, 0x04, 0x00, 0x31, 0x41, 0x32, 0x00}) // model 2
	buf.Write([]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x43, byte(module)})
	n := len(data) + 3
	buf.Write([]byte{0x1D, 0x28, 0x6B, byte(n), byte(n >> 8), 0x31, 0x50, 0x30})
	buf.Write(data)
	buf.Write([]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x51, 0x30})
}

func (escposEmitter) finish(buf *bytes.Buffer, cut bool) {
	if cut {
		buf.Write([]byte{0x1D, 0x56, 0x42, 0x00}) // feed and partial cut
	}
}

// ---------------------------------------------------------------------------
// sii
//
// The body commands track the escpos set; the reset framing and chunk limit
// differ.

type siiEmitter struct{}

func (siiEmitter) begin(buf *bytes.Buffer, opts model.Options) {
	buf.Write([]byte{0x12, 0x40}) // hard reset
	if opts.UpsideDown {
		buf.Write([]byte{0x1B, 0x7B, 0x01})
	}
	left := opts.MarginLeft * cellWidth
	buf.Write([]byte{0x1D, 0x4C, byte(left), byte(left >> 8)})
	width := (opts.CharsPerLine - opts.MarginLeft - opts.MarginRight) * cellWidth
	buf.Write([]byte{0x1D, 0x57, byte(width), byte(width >> 8)})
}

func (siiEmitter) feed(buf *bytes.Buffer, dots int) {
	writeFeed(buf, []byte{0x1B, 0x4A}, dots)
}

func (siiEmitter) style(buf *bytes.Buffer, s Style)  { escposEmitter{}.style(buf, s) }
func (siiEmitter) text(buf *bytes.Buffer, s string)  { buf.WriteString(s) }
func (siiEmitter) maxChunkRows() int                 { return 96 }

func (siiEmitter) imageChunk(buf *bytes.Buffer, bm halftone.MonochromeBitmap, fromRow, rows int) {
	escposEmitter{}.imageChunk(buf, bm, fromRow, rows)
}

func (siiEmitter) barcode(buf *bytes.Buffer, sym barcode.Symbology, payload []byte) {
	escposEmitter{}.barcode(buf, sym, payload)
}

func (siiEmitter) qr(buf *bytes.Buffer, data []byte, module int) {
	escposEmitter{}.qr(buf, data, module)
}

func (siiEmitter) finish(buf *bytes.Buffer, cut bool) {
	if cut {
		buf.Write([]byte{0x1D, 0x56, 0x42, 0x00})
	}
}

// ---------------------------------------------------------------------------
// star-like

type starEmitter struct{}

func (starEmitter) begin(buf *bytes.Buffer, opts model.Options) {
	buf.Write([]byte{0x1B, 0x40}) // initialize; rewritten before transmission
	if opts.UpsideDown {
		buf.WriteByte(0x0F)
	}
	buf.Write([]byte{0x1B, 0x6C, byte(opts.MarginLeft)})
	buf.Write([]byte{0x1B, 0x51, byte(opts.CharsPerLine - opts.MarginRight)})
}

func (starEmitter) feed(buf *bytes.Buffer, dots int) {
	writeFeed(buf, []byte{0x1B, 0x49}, dots)
}

func (starEmitter) style(buf *bytes.Buffer, s Style) {
	buf.Write([]byte{0x1B, 0x2D, b01(s.Underline)})
	if s.Emphasis {
		buf.Write([]byte{0x1B, 0x45})
	} else {
		buf.Write([]byte{0x1B, 0x46})
	}
	if s.Invert {
		buf.Write([]byte{0x1B, 0x34})
	} else {
		buf.Write([]byte{0x1B, 0x35})
	}
	buf.Write([]byte{0x1B, 0x69, b01(s.DoubleHeight), b01(s.DoubleWidth)})
}

func (starEmitter) text(buf *bytes.Buffer, s string) { buf.WriteString(s) }

func (starEmitter) imageChunk(buf *bytes.Buffer, bm halftone.MonochromeBitmap, fromRow, rows int) {
	buf.Write([]byte{0x1B, 0x58,
		byte(bm.Stride), byte(bm.Stride >> 8),
		byte(rows), byte(rows >> 8)})
	buf.Write(bm.Rows[fromRow*bm.Stride : (fromRow+rows)*bm.Stride])
}

func (starEmitter) maxChunkRows() int { return 24 }

var starSymbologies = map[barcode.Symbology]byte{
	barcode.UPCE:    '1',
	barcode.Codabar: '5',
	barcode.Code128: '6',
	barcode.Code93:  '7',
}

func (starEmitter) barcode(buf *bytes.Buffer, sym barcode.Symbology, payload []byte) {
	n, ok := starSymbologies[sym]
	if !ok {
		return
	}
	buf.Write([]byte{0x1B, 0x62, n, 0x31, 0x31, 0x50})
	buf.Write(payload)
	buf.WriteByte(0x1E)
}

func (starEmitter) qr(buf *bytes.Buffer, data []byte, module int) {
	if module < 1 || module > 8 {
		module = 3
	}
	buf.Write([]byte{0x1B, 0x1D, 0x79, 0x53, 0x30, 0x02})
	buf.Write([]byte{0x1B, 0x1D, 0x79, 0x53, 0x32, byte(module)})
	buf.Write([]byte{0x1B, 0x1D, 0x79, 0x44, 0x31, 0x00,
		byte(len(data)), byte(len(data) >> 8)})
	buf.Write(data)
	buf.Write([]byte{0x1B, 0x1D, 0x79, 0x50})
}

func (starEmitter) finish(buf *bytes.Buffer, cut bool) {
	if cut {
		buf.Write([]byte{0x1B, 0x64, 0x03})
	}
	// Trailing status request; stripped again before transmission when the
	// stream goes through a live session.
	buf.Write([]byte{0x1B, 0x06, 0x01})
}

func b01(v bool) byte {
	if v {
		return 1
	}
	return 0
}
