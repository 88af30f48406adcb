// internal/protocol/decoder.go
package protocol

import (
	"fmt"

	"print-service/internal/model"
)

// State is the position of a session in its family's sequence. It only
// advances forward; Closed is terminal and reached exactly once.
type State int

const (
	StateOpened State = iota
	StateHandshakeSent
	StateStatusReady
	StatePrinting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateHandshakeSent:
		return "handshake_sent"
	case StateStatusReady:
		return "status_ready"
	case StatePrinting:
		return "printing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Inquiry describes what the session is asking of the printer.
type Inquiry struct {
	// StatusOnly sessions never transmit the command buffer; they resolve on
	// the first definitive online/fault classification.
	StatusOnly bool
	// Drawer asks for the drawer-kick pin level instead of printer status.
	// Only the escpos family reports it.
	Drawer bool
}

// VerdictKind is the outcome of classifying the first unconsumed bytes of the
// receive buffer.
type VerdictKind int

const (
	// VerdictIncomplete: a frame has started but not fully arrived; wait for
	// more bytes.
	VerdictIncomplete VerdictKind = iota
	// VerdictSkip: Consumed bytes are recognized (or unrecognizable) and
	// carry no state change.
	VerdictSkip
	// VerdictResolve: terminal classification; Result holds the code.
	VerdictResolve
	// VerdictReady: the handshake answered clean; advance to StatusReady.
	VerdictReady
	// VerdictStatusOK: a qualifying, fault-free automatic-status frame.
	VerdictStatusOK
	// VerdictComplete: the family's completion signal while printing.
	VerdictComplete
	// VerdictNeedDetail: the generic-error bit is set and the family wants an
	// error-detail exchange before resolving.
	VerdictNeedDetail
)

// Verdict is one classification step over the receive buffer.
type Verdict struct {
	Kind     VerdictKind
	Consumed int
	Result   model.ResultCode
}

func incomplete() Verdict             { return Verdict{Kind: VerdictIncomplete} }
func skip(n int) Verdict              { return Verdict{Kind: VerdictSkip, Consumed: n} }
func resolve(n int, r model.ResultCode) Verdict {
	return Verdict{Kind: VerdictResolve, Consumed: n, Result: r}
}

// StatusDecoder is the per-family capability: hello bytes, status enabling,
// job framing fixups and byte-level status classification. The engine loop is
// family-agnostic and only calls this interface.
type StatusDecoder interface {
	Family() model.PrinterFamily

	// Hello is the handshake sequence written on transport connect.
	Hello(inq Inquiry) []byte
	// HandshakeImplicit reports that the hello needs no response and the
	// session advances to StatusReady immediately.
	HandshakeImplicit() bool
	// EnableStatus is the automatic-status-enable sequence.
	EnableStatus() []byte
	// DetailRequest is the error-detail request, or nil for families without
	// that exchange.
	DetailRequest() []byte
	// PrepareJob applies the family's reset-framing fixups to the prepared
	// command buffer before transmission.
	PrepareJob(cmd []byte) []byte

	// Classify examines the first unconsumed byte(s) of the receive buffer.
	// Fault bits are evaluated in priority order: cover-open, paper-empty,
	// generic-error, then (for status-only sessions) online, then readiness.
	Classify(buf []byte, state State, inq Inquiry) Verdict
}

// NewDecoder returns the decoder for a printer family.
func NewDecoder(family model.PrinterFamily) (StatusDecoder, error) {
	switch family {
	case model.FamilyESCPOS:
		return escposDecoder{}, nil
	case model.FamilySII:
		return siiDecoder{}, nil
	case model.FamilyStar:
		return starDecoder{}, nil
	default:
		return nil, fmt.Errorf("no status decoder for family %q", family)
	}
}
