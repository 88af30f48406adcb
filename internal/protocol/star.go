// internal/protocol/star.go
package protocol

import (
	"bytes"

	"print-service/internal/model"
)

// starCommands are the wire sequences of the star-like family.
var starCommands = struct {
	StatusRequest []byte // ESC ACK SOH: realtime status request
	EnableASB     []byte // ESC RS a 1
	Initialize    []byte // ESC @
	ResetBegin    []byte // initialize + re-enable ASB (initialize clears it)
}{
	StatusRequest: []byte{0x1B, 0x06, 0x01},
	EnableASB:     []byte{0x1B, 0x1E, 0x61, 0x01},
	Initialize:    []byte{0x1B, 0x40},
	ResetBegin:    []byte{0x1B, 0x40, 0x1B, 0x1E, 0x61, 0x01},
}

// Variable-length status frame. The header carries the total frame length in
// bits 1-3 of each of the first two bytes (low three bits then high three).
const (
	starHdr0Mask  = 0x91
	starHdr0Value = 0x01
	starHdr1Mask  = 0x91
	starHdr1Value = 0x00

	starFrameMin = 7
	starFrameMax = 63

	starCoverOpen  = 0x20 // byte 2
	starError      = 0x28 // byte 4
	starPaperEmpty = 0x08 // byte 5
)

func starFrameLen(b0, b1 byte) int {
	return int(b0>>1&0x07) | int(b1>>1&0x07)<<3
}

type starDecoder struct{}

func (starDecoder) Family() model.PrinterFamily { return model.FamilyStar }

func (starDecoder) Hello(Inquiry) []byte    { return starCommands.StatusRequest }
func (starDecoder) HandshakeImplicit() bool { return false }
func (starDecoder) EnableStatus() []byte    { return starCommands.EnableASB }
func (starDecoder) DetailRequest() []byte   { return nil }

// PrepareJob rewrites the leading initialize into initialize-plus-enable
// (initialize drops the automatic-status setting) and strips a trailing
// status request left over from standalone framing.
func (starDecoder) PrepareJob(cmd []byte) []byte {
	if bytes.HasPrefix(cmd, starCommands.Initialize) {
		out := make([]byte, 0, len(cmd)+len(starCommands.ResetBegin))
		out = append(out, starCommands.ResetBegin...)
		out = append(out, cmd[len(starCommands.Initialize):]...)
		cmd = out
	}
	return bytes.TrimSuffix(cmd, starCommands.StatusRequest)
}

func (starDecoder) Classify(buf []byte, state State, inq Inquiry) Verdict {
	if len(buf) < 2 {
		return incomplete()
	}
	b0, b1 := buf[0], buf[1]
	if b0&starHdr0Mask != starHdr0Value || b1&starHdr1Mask != starHdr1Value {
		return skip(1)
	}
	n := starFrameLen(b0, b1)
	if n < starFrameMin || n > starFrameMax {
		return skip(1)
	}
	if len(buf) < n {
		return incomplete()
	}

	switch {
	case buf[2]&starCoverOpen != 0:
		return resolve(n, model.ResultCoverOpen)
	case buf[5]&starPaperEmpty != 0:
		return resolve(n, model.ResultPaperEmpty)
	case buf[4]&starError != 0:
		return resolve(n, model.ResultError)
	}

	switch state {
	case StateHandshakeSent:
		if inq.StatusOnly {
			return resolve(n, model.ResultOnline)
		}
		return Verdict{Kind: VerdictReady, Consumed: n}
	case StatePrinting:
		return Verdict{Kind: VerdictComplete, Consumed: n}
	default:
		return Verdict{Kind: VerdictStatusOK, Consumed: n}
	}
}
