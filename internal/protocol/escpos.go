// internal/protocol/escpos.go
package protocol

import (
	"bytes"

	"print-service/internal/model"
)

// escposCommands are the wire sequences of the escpos-like family.
var escposCommands = struct {
	StatusRequest []byte // DLE EOT 2: realtime offline-cause status
	DrawerRequest []byte // DLE EOT 1: realtime printer status with drawer pin
	DetailRequest []byte // DLE EOT 3: realtime error-detail status
	EnableASB     []byte // GS a 0xFF: enable all automatic status fields
	Initialize    []byte // ESC @
}{
	StatusRequest: []byte{0x10, 0x04, 0x02},
	DrawerRequest: []byte{0x10, 0x04, 0x01},
	DetailRequest: []byte{0x10, 0x04, 0x03},
	EnableASB:     []byte{0x1D, 0x61, 0xFF},
	Initialize:    []byte{0x1B, 0x40},
}

// Realtime status byte layout: fixed bits 0x93 must read 0x12. The payload
// bits depend on which DLE EOT n was asked.
const (
	escposRTFixedMask  = 0x93
	escposRTFixedValue = 0x12
	escposRTDrawerHigh = 0x04 // DLE EOT 1: drawer-kick pin level
	escposRTCoverOpen  = 0x04 // DLE EOT 2
	escposRTPaperEmpty = 0x20 // DLE EOT 2
	escposRTError      = 0x40 // DLE EOT 2
)

// Stream framing after the handshake: the leading byte's top bits select the
// frame type.
const (
	escposBlockMask  = 0xF0
	escposBlockValue = 0x30 // block data, runs to the next NUL

	escposASBFixedMask  = 0x93
	escposASBFixedValue = 0x10 // first byte of a 4-byte ASB frame
	escposASBLen        = 4

	// ASB trailing bytes carry a zero top bit and a zero bit 4.
	escposASBTrailMask = 0x90

	escposASBCoverOpen  = 0x04 // byte 1
	escposASBError      = 0x40 // byte 1
	escposASBPaperEmpty = 0x0C // byte 2
)

type escposDecoder struct{}

func (escposDecoder) Family() model.PrinterFamily { return model.FamilyESCPOS }

func (escposDecoder) Hello(inq Inquiry) []byte {
	if inq.Drawer {
		return escposCommands.DrawerRequest
	}
	return escposCommands.StatusRequest
}

func (escposDecoder) HandshakeImplicit() bool { return false }
func (escposDecoder) EnableStatus() []byte    { return escposCommands.EnableASB }
func (escposDecoder) DetailRequest() []byte   { return escposCommands.DetailRequest }

// PrepareJob passes the buffer through; the handshake leaves the printer
// initialized, and composed jobs start with ESC @ which is harmless here.
func (escposDecoder) PrepareJob(cmd []byte) []byte { return cmd }

func (escposDecoder) Classify(buf []byte, state State, inq Inquiry) Verdict {
	b := buf[0]

	if state == StateHandshakeSent {
		if b&escposRTFixedMask != escposRTFixedValue {
			return skip(1)
		}
		if inq.Drawer {
			if b&escposRTDrawerHigh != 0 {
				return resolve(1, model.ResultDrawerOpen)
			}
			return resolve(1, model.ResultDrawerClosed)
		}
		switch {
		case b&escposRTCoverOpen != 0:
			return resolve(1, model.ResultCoverOpen)
		case b&escposRTPaperEmpty != 0:
			return resolve(1, model.ResultPaperEmpty)
		case b&escposRTError != 0:
			return Verdict{Kind: VerdictNeedDetail, Consumed: 1}
		case inq.StatusOnly:
			return resolve(1, model.ResultOnline)
		default:
			return Verdict{Kind: VerdictReady, Consumed: 1}
		}
	}

	// Post-handshake stream: block data, realtime status echo, or ASB.
	if b&escposBlockMask == escposBlockValue {
		nul := bytes.IndexByte(buf, 0x00)
		if nul < 0 {
			return incomplete()
		}
		return skip(nul + 1)
	}

	if b&escposRTFixedMask == escposRTFixedValue {
		// A realtime status byte after the job was sent is the completion
		// echo; elsewhere it is a stray answer to an earlier poll.
		if state == StatePrinting {
			return Verdict{Kind: VerdictComplete, Consumed: 1}
		}
		return skip(1)
	}

	if b&escposASBFixedMask == escposASBFixedValue {
		if len(buf) < escposASBLen {
			return incomplete()
		}
		b1, b2, b3 := buf[1], buf[2], buf[3]
		if b1&escposASBTrailMask != 0 || b2&escposASBTrailMask != 0 || b3&escposASBTrailMask != 0 {
			// Misaligned: one of the trailing bytes is a frame header.
			return skip(1)
		}
		switch {
		case b1&escposASBCoverOpen != 0:
			return resolve(escposASBLen, model.ResultCoverOpen)
		case b2&escposASBPaperEmpty != 0:
			return resolve(escposASBLen, model.ResultPaperEmpty)
		case b1&escposASBError != 0:
			return resolve(escposASBLen, model.ResultError)
		default:
			return Verdict{Kind: VerdictStatusOK, Consumed: escposASBLen}
		}
	}

	return skip(1)
}
