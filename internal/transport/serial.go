// internal/transport/serial.go
package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"print-service/internal/model"
)

// SerialTransport drives a printer on a serial line.
type SerialTransport struct {
	*pump
	dest model.Destination
	port serial.Port
}

// NewSerialTransport creates a transport for a serial destination.
func NewSerialTransport(dest model.Destination, logger *zap.Logger) *SerialTransport {
	return &SerialTransport{
		pump: newPump(logger.With(zap.String("transport", "serial"), zap.String("port", dest.Path))),
		dest: dest,
	}
}

// Open opens the line with the parsed parameters. A path that is not a
// presently enumerated serial device fails the open; the session maps that to
// disconnect.
func (t *SerialTransport) Open(ctx context.Context) error {
	if !isEnumeratedSerialPort(t.dest.Path) {
		return fmt.Errorf("%s is not an enumerated serial port", t.dest.Path)
	}

	mode := &serial.Mode{
		BaudRate: t.dest.Serial.BaudRate,
		DataBits: t.dest.Serial.DataBits,
	}
	switch t.dest.Serial.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	if t.dest.Serial.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}
	// go.bug.st/serial has no portable RTS/CTS or XON/XOFF toggle in Mode;
	// R and X are accepted in the destination syntax and the line is opened
	// with the driver default.

	port, err := serial.Open(t.dest.Path, mode)
	if err != nil {
		t.logger.Warn("serial open failed", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", t.dest.Path, err)
	}
	// A read timeout keeps the read loop responsive to Close.
	if err := port.SetReadTimeout(250 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	t.port = port
	t.closeFn = port.Close
	go t.writeLoop(port)
	go t.readLoop(serialReader{port})

	t.logger.Info("serial port opened",
		zap.Int("baud_rate", t.dest.Serial.BaudRate),
		zap.String("parity", t.dest.Serial.Parity),
	)
	return nil
}

func (t *SerialTransport) Close() error {
	return t.close()
}

// isEnumeratedSerialPort checks the path against the host's serial port list.
func isEnumeratedSerialPort(path string) bool {
	ports, err := serial.GetPortsList()
	if err != nil {
		return false
	}
	for _, p := range ports {
		if p == path {
			return true
		}
	}
	return false
}

// serialReader adapts the port's timeout reads to the pump's blocking read
// contract: a timed-out read returns n==0 with no error and must not be
// treated as EOF.
type serialReader struct {
	port serial.Port
}

func (r serialReader) Read(p []byte) (int, error) {
	for {
		n, err := r.port.Read(p)
		if err != nil {
			if err == io.EOF && n == 0 {
				continue
			}
			return n, err
		}
		if n > 0 {
			return n, nil
		}
		// Timeout tick with no data; poll again.
	}
}
