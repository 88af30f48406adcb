// internal/model/model.go
package model

import (
	"fmt"
	"strings"
)

// ResultCode represents the terminal outcome of a print or status session.
// Exactly one ResultCode is produced per session.
type ResultCode string

const (
	ResultSuccess      ResultCode = "success"
	ResultOnline       ResultCode = "online"
	ResultCoverOpen    ResultCode = "coveropen"
	ResultPaperEmpty   ResultCode = "paperempty"
	ResultError        ResultCode = "error"
	ResultOffline      ResultCode = "offline"
	ResultDisconnect   ResultCode = "disconnect"
	ResultTimeout      ResultCode = "timeout"
	ResultDrawerClosed ResultCode = "drawerclosed"
	ResultDrawerOpen   ResultCode = "draweropen"
)

// IsFault reports whether the code is a printer-reported fault.
func (r ResultCode) IsFault() bool {
	switch r {
	case ResultCoverOpen, ResultPaperEmpty, ResultError:
		return true
	}
	return false
}

// PrinterFamily represents a printer command language family. Each family has
// its own hello bytes, status bit masks and automatic-status-enable sequence.
type PrinterFamily string

const (
	FamilyESCPOS PrinterFamily = "escpos"
	FamilySII    PrinterFamily = "sii"
	FamilyStar   PrinterFamily = "star"
)

// ParseFamily resolves a command-language option into a PrinterFamily.
func ParseFamily(s string) (PrinterFamily, error) {
	switch PrinterFamily(strings.ToLower(strings.TrimSpace(s))) {
	case FamilyESCPOS:
		return FamilyESCPOS, nil
	case FamilySII:
		return FamilySII, nil
	case FamilyStar:
		return FamilyStar, nil
	}
	return "", fmt.Errorf("unknown printer family: %q", s)
}

// Option surface limits. Out-of-range values are reset to the default, not
// rejected.
const (
	DefaultTimeoutSeconds = 300
	MaxTimeoutSeconds     = 3600

	MinCharsPerLine     = 24
	MaxCharsPerLine     = 96
	DefaultCharsPerLine = 48

	MaxMargin = 24

	DefaultGamma          = 1.0
	DefaultLandscapeGamma = 1.8
	MinGamma              = 0.1
	MaxGamma              = 10.0
)

// Options carries the per-request option surface consumed by the session and
// the command composer.
type Options struct {
	// TimeoutSeconds is the print deadline; 0 means no timeout.
	TimeoutSeconds int `json:"timeout_seconds"`
	// StatusOnly requests a status inquiry; no command buffer is sent.
	StatusOnly bool `json:"status_only"`
	// DrawerStatus requests a drawer-pin inquiry instead of a printer status
	// inquiry. Implies StatusOnly. Only the escpos family reports the pin.
	DrawerStatus bool `json:"drawer_status"`

	CharsPerLine int  `json:"chars_per_line"`
	MarginLeft   int  `json:"margin_left"`
	MarginRight  int  `json:"margin_right"`
	UpsideDown   bool `json:"upside_down"`
	Landscape    bool `json:"landscape"`
	// Resolution in dpi for landscape emulation: 180 or 203.
	Resolution int `json:"resolution"`

	// Threshold 0..255 for halftoning; Gamma 0.1..10.0.
	Threshold int     `json:"threshold"`
	Gamma     float64 `json:"gamma"`
	Cut       bool    `json:"cut"`
}

// Normalize clamps every field into its documented range, resetting
// out-of-range values to the defaults.
func (o *Options) Normalize() {
	if o.TimeoutSeconds < 0 || o.TimeoutSeconds > MaxTimeoutSeconds {
		o.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if o.CharsPerLine < MinCharsPerLine || o.CharsPerLine > MaxCharsPerLine {
		o.CharsPerLine = DefaultCharsPerLine
	}
	if o.MarginLeft < 0 || o.MarginLeft > MaxMargin {
		o.MarginLeft = 0
	}
	if o.MarginRight < 0 || o.MarginRight > MaxMargin {
		o.MarginRight = 0
	}
	if o.Resolution != 180 && o.Resolution != 203 {
		o.Resolution = 203
	}
	if o.Threshold < 0 || o.Threshold > 255 {
		o.Threshold = 128
	}
	if o.Gamma < MinGamma || o.Gamma > MaxGamma {
		if o.Landscape {
			o.Gamma = DefaultLandscapeGamma
		} else {
			o.Gamma = DefaultGamma
		}
	}
	if o.DrawerStatus {
		o.StatusOnly = true
	}
}
