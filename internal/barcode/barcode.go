// internal/barcode/barcode.go
package barcode

import (
	"print-service/internal/model"
)

// Symbology names the barcode types whose payloads need a byte transform
// before they reach a family's barcode command.
type Symbology string

const (
	UPCE    Symbology = "upce"
	Code128 Symbology = "code128"
	Codabar Symbology = "codabar"
	Code93  Symbology = "code93"
)

// maxPayload caps every transformed payload. Oversized input is cut, not
// rejected.
const maxPayload = 255

// Transform produces the payload bytes a family's barcode command expects.
// Unsupported or malformed payloads pass through unchanged; the only hard
// rule is the 255-byte cap.
func Transform(family model.PrinterFamily, sym Symbology, payload []byte) []byte {
	var out []byte
	switch sym {
	case UPCE:
		out = upce(payload)
	case Code128:
		out = code128(family, payload)
	case Codabar:
		out = codabar(family, payload)
	case Code93:
		out = append([]byte{}, payload...)
	default:
		out = append([]byte{}, payload...)
	}
	if len(out) > maxPayload {
		out = out[:maxPayload]
	}
	return out
}

// upce compresses an 11- or 12-digit UPC-A payload to its 8-digit short form
// (number system, six compressed digits, check digit). Payloads that do not
// fit any compression pattern pass through.
func upce(payload []byte) []byte {
	if !allDigits(payload) || (len(payload) != 11 && len(payload) != 12) {
		return append([]byte{}, payload...)
	}

	digits := payload[:11]
	check := upcCheckDigit(digits)
	if len(payload) == 12 && payload[11] != check {
		return append([]byte{}, payload...)
	}

	system := digits[0]
	mfr := digits[1:6]
	product := digits[6:11]
	productVal := digitValue(product)

	var short []byte
	switch {
	case mfr[3] == '0' && mfr[4] == '0' && mfr[2] <= '2' && productVal <= 999:
		// Manufacturer ends 000/100/200: product keeps three digits.
		short = []byte{mfr[0], mfr[1], product[2], product[3], product[4], mfr[2]}
	case mfr[3] == '0' && mfr[4] == '0' && productVal <= 99:
		short = []byte{mfr[0], mfr[1], mfr[2], product[3], product[4], '3'}
	case mfr[4] == '0' && productVal <= 9:
		short = []byte{mfr[0], mfr[1], mfr[2], mfr[3], product[4], '4'}
	case mfr[4] >= '5' && productVal <= 9 && product[4] >= '5':
		short = []byte{mfr[0], mfr[1], mfr[2], mfr[3], mfr[4], product[4]}
	default:
		return append([]byte{}, payload...)
	}

	out := make([]byte, 0, 8)
	out = append(out, system)
	out = append(out, short...)
	out = append(out, check)
	return out
}

func allDigits(p []byte) bool {
	for _, b := range p {
		if b < '0' || b > '9' {
			return false
		}
	}
	return len(p) > 0
}

func digitValue(p []byte) int {
	v := 0
	for _, b := range p {
		v = v*10 + int(b-'0')
	}
	return v
}

// upcCheckDigit computes the modulo-10 check over the leading 11 digits.
func upcCheckDigit(digits []byte) byte {
	sum := 0
	for i, b := range digits {
		d := int(b - '0')
		if i%2 == 0 {
			sum += d * 3
		} else {
			sum += d
		}
	}
	return byte('0' + (10-sum%10)%10)
}

// CODE128 code values for the three subsets.
const (
	code128SwitchA = 101
	code128SwitchB = 100
	code128SwitchC = 99
	code128StartA  = 103
	code128StartB  = 104
	code128StartC  = 105
)

// code128 packs the payload into the shortest subset sequence. The escpos
// family takes the textual {-escaped form and computes the checksum itself;
// the others take raw code values with the checksum appended.
func code128(family model.PrinterFamily, payload []byte) []byte {
	values := code128Values(payload)
	if values == nil {
		return append([]byte{}, payload...)
	}

	if family == model.FamilyESCPOS {
		return code128Escaped(payload, values)
	}

	sum := int(values[0])
	for i, v := range values[1:] {
		sum += int(v) * (i + 1)
	}
	return append(values, byte(sum%103))
}

// code128Values translates the payload into code values, choosing subset C
// for long digit runs and A only where control characters force it. Returns
// nil for bytes CODE128 cannot carry.
func code128Values(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}
	for _, b := range payload {
		if b > 0x7F {
			return nil
		}
	}

	var out []byte
	subset := byte(0)
	i := 0
	for i < len(payload) {
		run := digitRun(payload[i:])
		useC := run >= 6 || (run >= 4 && (i == 0 || i+run == len(payload)))
		switch {
		case useC:
			out = switchSubset(out, &subset, 'C')
			// An odd run leaves its first digit to the surrounding subset;
			// pairs pack two digits per value.
			if run%2 == 1 {
				run--
				out = out[:len(out)-1] // undo switch, emit odd digit first
				subset = previousSubset(out)
				out = emitChar(out, &subset, payload[i])
				i++
				out = switchSubset(out, &subset, 'C')
			}
			for j := 0; j < run; j += 2 {
				out = append(out, (payload[i+j]-'0')*10+(payload[i+j+1]-'0'))
			}
			i += run
		case payload[i] < 0x20:
			out = switchSubset(out, &subset, 'A')
			out = append(out, code128ValueA(payload[i]))
			i++
		default:
			out = emitChar(out, &subset, payload[i])
			i++
		}
	}
	return out
}

func digitRun(p []byte) int {
	n := 0
	for n < len(p) && p[n] >= '0' && p[n] <= '9' {
		n++
	}
	return n
}

func code128ValueA(b byte) byte {
	if b < 0x20 {
		return b + 64
	}
	return b - 0x20
}

func code128ValueB(b byte) byte { return b - 0x20 }

func emitChar(out []byte, subset *byte, b byte) []byte {
	if b < 0x20 {
		out = switchSubset(out, subset, 'A')
		return append(out, code128ValueA(b))
	}
	out = switchSubset(out, subset, 'B')
	return append(out, code128ValueB(b))
}

func switchSubset(out []byte, subset *byte, to byte) []byte {
	if *subset == to {
		return out
	}
	if *subset == 0 {
		switch to {
		case 'A':
			out = append(out, code128StartA)
		case 'B':
			out = append(out, code128StartB)
		case 'C':
			out = append(out, code128StartC)
		}
	} else {
		switch to {
		case 'A':
			out = append(out, code128SwitchA)
		case 'B':
			out = append(out, code128SwitchB)
		case 'C':
			out = append(out, code128SwitchC)
		}
	}
	*subset = to
	return out
}

func previousSubset(out []byte) byte {
	for i := len(out) - 1; i >= 0; i-- {
		switch out[i] {
		case code128StartA, code128SwitchA:
			return 'A'
		case code128StartB, code128SwitchB:
			return 'B'
		case code128StartC, code128SwitchC:
			return 'C'
		}
	}
	return 0
}

// code128Escaped renders the subset sequence in the textual form where '{'
// introduces start/switch codes and a literal '{' doubles.
func code128Escaped(payload, values []byte) []byte {
	var out []byte
	subset := byte(0)
	vi := 0
	appendControl := func(code byte) {
		switch code {
		case code128StartA, code128SwitchA:
			out = append(out, '{', 'A')
			subset = 'A'
		case code128StartB, code128SwitchB:
			out = append(out, '{', 'B')
			subset = 'B'
		case code128StartC, code128SwitchC:
			out = append(out, '{', 'C')
			subset = 'C'
		}
	}
	for vi < len(values) {
		v := values[vi]
		if subset == 0 || isSubsetControl(v, subset) {
			appendControl(v)
			vi++
			continue
		}
		switch subset {
		case 'A':
			if v >= 64 {
				out = append(out, v-64)
			} else {
				out = append(out, v+0x20)
			}
		case 'B':
			c := v + 0x20
			if c == '{' {
				out = append(out, '{', '{')
			} else {
				out = append(out, c)
			}
		case 'C':
			out = append(out, v)
		}
		vi++
	}
	return out
}

func isSubsetControl(v, subset byte) bool {
	switch v {
	case code128SwitchA:
		return subset != 'A'
	case code128SwitchB:
		return subset != 'B'
	case code128SwitchC:
		return subset != 'C'
	}
	return false
}

// codabar wraps the payload in start/stop markers when the payload does not
// carry its own. Star wants them lowercase.
func codabar(family model.PrinterFamily, payload []byte) []byte {
	hasMarkers := len(payload) >= 2 &&
		isCodabarMarker(payload[0]) && isCodabarMarker(payload[len(payload)-1])

	out := make([]byte, 0, len(payload)+2)
	if hasMarkers {
		out = append(out, payload...)
	} else {
		out = append(out, 'A')
		out = append(out, payload...)
		out = append(out, 'A')
	}
	if family == model.FamilyStar {
		out[0] |= 0x20
		out[len(out)-1] |= 0x20
	}
	return out
}

func isCodabarMarker(b byte) bool {
	switch b {
	case 'A', 'B', 'C', 'D', 'a', 'b', 'c', 'd':
		return true
	}
	return false
}
