package barcode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"print-service/internal/model"
)

func TestUPCECompression(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		// Manufacturer ending in 5-9 with a single product digit 5-9.
		{"mfr_tail_5", "012345000058", "01234558"},
		// Manufacturer ending 000 keeps three product digits.
		{"mfr_tail_000", "01200000999", "01299900"},
		// Manufacturer ending 00 keeps two product digits.
		{"mfr_tail_00", "03450000026", "03452630"},
		// Manufacturer ending in one zero keeps one product digit.
		{"mfr_tail_0", "01234000009", "01234941"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Transform(model.FamilyESCPOS, UPCE, []byte(c.payload))
			assert.Equal(t, c.want, string(got))
		})
	}
}

func TestUPCEUncompressiblePassesThrough(t *testing.T) {
	// Product value too large for any pattern.
	in := []byte("01234512345")
	assert.Equal(t, in, Transform(model.FamilyESCPOS, UPCE, in))

	// Non-digits and wrong lengths pass through too.
	assert.Equal(t, []byte("abc"), Transform(model.FamilyESCPOS, UPCE, []byte("abc")))

	// A 12th digit that contradicts the computed check is left alone.
	bad := []byte("012345000057")
	assert.Equal(t, bad, Transform(model.FamilyESCPOS, UPCE, bad))
}

func TestCode128SubsetSelection(t *testing.T) {
	// Pure digits pack in subset C, two per value.
	got := Transform(model.FamilyStar, Code128, []byte("123456"))
	assert.Equal(t, []byte{105, 12, 34, 56, 44}, got)

	// Text with a trailing digit run switches B -> C.
	got = Transform(model.FamilyStar, Code128, []byte("AB123456"))
	assert.Equal(t, []byte{104, 33, 34, 99, 12, 34, 56, 26}, got)

	// Short mixed text stays in subset B; checksum closes the sequence.
	got = Transform(model.FamilyStar, Code128, []byte("AB12"))
	assert.Equal(t, []byte{104, 33, 34, 17, 18, 19}, got)
}

func TestCode128EscposEscapedForm(t *testing.T) {
	got := Transform(model.FamilyESCPOS, Code128, []byte("AB123456"))
	want := append([]byte{'{', 'B', 'A', 'B', '{', 'C'}, 12, 34, 56)
	assert.Equal(t, want, got)

	// Literal brace doubles in subset B.
	got = Transform(model.FamilyESCPOS, Code128, []byte("a{b"))
	assert.Equal(t, []byte{'{', 'B', 'a', '{', '{', 'b'}, got)
}

func TestCode128OddDigitRun(t *testing.T) {
	// Seven digits: one digit rides in subset B, six pack in C.
	got := Transform(model.FamilyStar, Code128, []byte("1234567"))
	values := got[:len(got)-1]
	assert.Equal(t, []byte{104, 17, 99, 23, 45, 67}, values)
}

func TestCode128RejectsHighBytes(t *testing.T) {
	in := []byte{'A', 0xFF}
	assert.Equal(t, in, Transform(model.FamilyStar, Code128, in))
}

func TestCodabarMarkers(t *testing.T) {
	assert.Equal(t, []byte("A1234A"), Transform(model.FamilyESCPOS, Codabar, []byte("1234")))
	// Payload-provided markers are kept.
	assert.Equal(t, []byte("B5678C"), Transform(model.FamilyESCPOS, Codabar, []byte("B5678C")))
	// Star wants lowercase markers.
	assert.Equal(t, []byte("a1234a"), Transform(model.FamilyStar, Codabar, []byte("1234")))
}

func TestCode93PassThrough(t *testing.T) {
	in := []byte("TEST-93")
	assert.Equal(t, in, Transform(model.FamilySII, Code93, in))
}

func TestOversizedPayloadTruncated(t *testing.T) {
	in := bytes.Repeat([]byte{'X'}, 400)
	got := Transform(model.FamilyESCPOS, Code93, in)
	assert.Len(t, got, 255)
}
