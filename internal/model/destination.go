// internal/model/destination.go
package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DestinationKind discriminates the transport a destination resolves to.
type DestinationKind string

const (
	DestinationNetwork DestinationKind = "network"
	DestinationSerial  DestinationKind = "serial"
	DestinationUSB     DestinationKind = "usb"
	// DestinationUSBBus targets a device on the USB bus by vendor/product ID
	// ("usb:04b8:0202") or by printer-class autodetection ("usb:").
	DestinationUSBBus DestinationKind = "usbbus"
	// DestinationNone is the empty destination: the session bypasses the
	// transport entirely and returns the command buffer unchanged.
	DestinationNone DestinationKind = "none"
)

// Serial line parameter defaults: 115200 8N1, no flow control.
const (
	DefaultBaudRate = 115200
	DefaultDataBits = 8
	DefaultStopBits = 1
)

// SerialParams holds parsed serial line parameters.
type SerialParams struct {
	BaudRate    int    `json:"baud_rate"`
	Parity      string `json:"parity"`       // N, E, O
	DataBits    int    `json:"data_bits"`    // 7, 8
	StopBits    int    `json:"stop_bits"`    // 1, 2
	FlowControl string `json:"flow_control"` // N, R (RTS/CTS), X (XON/XOFF)
}

// Destination is a parsed, immutable print target. Parsed once per session.
type Destination struct {
	Kind      DestinationKind `json:"kind"`
	Raw       string          `json:"raw"`
	Host      string          `json:"host,omitempty"` // network
	Path      string          `json:"path,omitempty"` // serial / usb device path
	Serial    SerialParams    `json:"serial,omitempty"`
	VendorID  uint16          `json:"vendor_id,omitempty"`  // usbbus
	ProductID uint16          `json:"product_id,omitempty"` // usbbus
}

// ParseDestination parses the destination syntax:
//
//	IPv4/IPv6 literal                     -> network (TCP port 9100)
//	/dev/usb/lp*                          -> USB character device
//	<path>[:baud[,parity[,data[,stop[,flow]]]]] -> serial line
//
// An empty string yields DestinationNone.
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{Kind: DestinationNone}, nil
	}

	if strings.HasPrefix(strings.ToLower(raw), "usb:") || strings.EqualFold(raw, "usb") {
		return parseUSBBusDestination(raw)
	}

	if ip := net.ParseIP(raw); ip != nil {
		host := raw
		if ip.To4() == nil {
			host = "[" + raw + "]"
		}
		return Destination{Kind: DestinationNetwork, Raw: raw, Host: host}, nil
	}

	path := raw
	params := SerialParams{
		BaudRate:    DefaultBaudRate,
		Parity:      "N",
		DataBits:    DefaultDataBits,
		StopBits:    DefaultStopBits,
		FlowControl: "N",
	}

	if i := strings.IndexByte(raw, ':'); i >= 0 {
		path = raw[:i]
		if err := parseSerialParams(raw[i+1:], &params); err != nil {
			return Destination{}, err
		}
	}
	if path == "" {
		return Destination{}, fmt.Errorf("empty device path in destination %q", raw)
	}

	if isUSBDevicePath(path) {
		return Destination{Kind: DestinationUSB, Raw: raw, Path: path}, nil
	}

	return Destination{Kind: DestinationSerial, Raw: raw, Path: path, Serial: params}, nil
}

// parseUSBBusDestination parses "usb", "usb:" (printer-class autodetect) or
// "usb:VVVV:PPPP" with hexadecimal vendor/product IDs.
func parseUSBBusDestination(raw string) (Destination, error) {
	spec := strings.TrimPrefix(strings.ToLower(raw), "usb")
	spec = strings.TrimPrefix(spec, ":")
	if spec == "" {
		return Destination{Kind: DestinationUSBBus, Raw: raw}, nil
	}
	parts := strings.Split(spec, ":")
	if len(parts) != 2 {
		return Destination{}, fmt.Errorf("invalid USB destination %q (want usb:VVVV:PPPP)", raw)
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return Destination{}, fmt.Errorf("invalid USB vendor ID %q: %w", parts[0], err)
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return Destination{}, fmt.Errorf("invalid USB product ID %q: %w", parts[1], err)
	}
	return Destination{Kind: DestinationUSBBus, Raw: raw, VendorID: uint16(vid), ProductID: uint16(pid)}, nil
}

// isUSBDevicePath reports whether the path names a USB printer character
// device (/dev/usb/lp*).
func isUSBDevicePath(path string) bool {
	return strings.HasPrefix(path, "/dev/usb/lp")
}

// parseSerialParams parses "baud[,parity[,databits[,stopbits[,flow]]]]".
// Commas are optional separators; fields may also run together with colons.
func parseSerialParams(spec string, params *SerialParams) error {
	fields := strings.FieldsFunc(spec, func(r rune) bool { return r == ',' || r == ':' })
	for i, f := range fields {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		switch i {
		case 0:
			baud, err := strconv.Atoi(f)
			if err != nil || baud <= 0 {
				return fmt.Errorf("invalid baud rate %q", f)
			}
			params.BaudRate = baud
		case 1:
			switch f {
			case "N", "E", "O":
				params.Parity = f
			default:
				return fmt.Errorf("invalid parity %q (want N, E or O)", f)
			}
		case 2:
			switch f {
			case "7", "8":
				params.DataBits = int(f[0] - '0')
			default:
				return fmt.Errorf("invalid data bits %q (want 7 or 8)", f)
			}
		case 3:
			switch f {
			case "1", "2":
				params.StopBits = int(f[0] - '0')
			default:
				return fmt.Errorf("invalid stop bits %q (want 1 or 2)", f)
			}
		case 4:
			switch f {
			case "N", "R", "X":
				params.FlowControl = f
			default:
				return fmt.Errorf("invalid flow control %q (want N, R or X)", f)
			}
		default:
			return fmt.Errorf("too many serial parameters in %q", spec)
		}
	}
	return nil
}

// IsEmpty reports whether this is the no-destination identity path.
func (d Destination) IsEmpty() bool {
	return d.Kind == DestinationNone
}

// Address returns the TCP dial address for network destinations.
func (d Destination) Address() string {
	return net.JoinHostPort(strings.Trim(d.Host, "[]"), "9100")
}
