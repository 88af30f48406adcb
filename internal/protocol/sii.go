// internal/protocol/sii.go
package protocol

import (
	"bytes"

	"print-service/internal/model"
)

// siiCommands are the wire sequences of the sii family. The reset doubles as
// the hello: these printers need no realtime poll before status is enabled.
var siiCommands = struct {
	Reset     []byte // DC2 @: hard reset
	EnableASB []byte // GS a 0xFF
}{
	Reset:     []byte{0x12, 0x40},
	EnableASB: []byte{0x1D, 0x61, 0xFF},
}

// 8-byte automatic-status frame: header byte carries 0xC0 in its top bits,
// fault bits live in bytes 0 and 1.
const (
	siiASBHeaderMask  = 0xF0
	siiASBHeaderValue = 0xC0
	siiASBLen         = 8

	siiASBCoverOpen  = 0x02 // byte 0
	siiASBError      = 0x08 // byte 0
	siiASBPaperEmpty = 0x01 // byte 1

	// Frame body bytes keep their top bit clear.
	siiASBBodyMask = 0x80

	// A lone status byte with 0x80 in its top bits signals job completion.
	siiStatusMask  = 0xF0
	siiStatusValue = 0x80
)

type siiDecoder struct{}

func (siiDecoder) Family() model.PrinterFamily { return model.FamilySII }

func (siiDecoder) Hello(Inquiry) []byte    { return siiCommands.Reset }
func (siiDecoder) HandshakeImplicit() bool { return true }
func (siiDecoder) EnableStatus() []byte    { return siiCommands.EnableASB }
func (siiDecoder) DetailRequest() []byte   { return nil }

// PrepareJob strips a leading reset; the hello already reset the device, and
// resetting again would drop the automatic-status enablement.
func (siiDecoder) PrepareJob(cmd []byte) []byte {
	return bytes.TrimPrefix(cmd, siiCommands.Reset)
}

func (siiDecoder) Classify(buf []byte, state State, inq Inquiry) Verdict {
	b := buf[0]

	if b&siiASBHeaderMask == siiASBHeaderValue {
		if len(buf) < siiASBLen {
			return incomplete()
		}
		for _, body := range buf[1:siiASBLen] {
			if body&siiASBBodyMask != 0 {
				return skip(1)
			}
		}
		switch {
		case b&siiASBCoverOpen != 0:
			return resolve(siiASBLen, model.ResultCoverOpen)
		case buf[1]&siiASBPaperEmpty != 0:
			return resolve(siiASBLen, model.ResultPaperEmpty)
		case b&siiASBError != 0:
			return resolve(siiASBLen, model.ResultError)
		default:
			return Verdict{Kind: VerdictStatusOK, Consumed: siiASBLen}
		}
	}

	if b&siiStatusMask == siiStatusValue {
		if state == StatePrinting {
			return Verdict{Kind: VerdictComplete, Consumed: 1}
		}
		return skip(1)
	}

	return skip(1)
}
