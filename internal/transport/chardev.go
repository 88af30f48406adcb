// internal/transport/chardev.go
package transport

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"print-service/internal/model"
)

// pollInterval is how often the character device is polled for input; such
// devices are not event-driven.
const pollInterval = 100 * time.Millisecond

// CharDevTransport drives a USB printer character device (/dev/usb/lp*).
// Input is polled at a fixed short interval and synthesized into Data events;
// writes are synchronous blocking calls behind the queued-write pump.
type CharDevTransport struct {
	*pump
	dest model.Destination
	file *os.File
}

// NewCharDevTransport creates a transport for a USB character device
// destination.
func NewCharDevTransport(dest model.Destination, logger *zap.Logger) *CharDevTransport {
	return &CharDevTransport{
		pump: newPump(logger.With(zap.String("transport", "chardev"), zap.String("path", dest.Path))),
		dest: dest,
	}
}

// Open opens the device for read+write.
func (t *CharDevTransport) Open(ctx context.Context) error {
	f, err := os.OpenFile(t.dest.Path, os.O_RDWR, 0)
	if err != nil {
		t.logger.Warn("device open failed", zap.Error(err))
		return fmt.Errorf("failed to open device %s: %w", t.dest.Path, err)
	}

	t.file = f
	t.closeFn = f.Close
	go t.writeLoop(f)
	go t.pollReads(f)

	t.logger.Info("character device opened")
	return nil
}

func (t *CharDevTransport) Close() error {
	return t.close()
}

// pollReads polls the device for available input and forwards it as Data
// events. Read errors after close are expected and ignored.
func (t *CharDevTransport) pollReads(f *os.File) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	buf := make([]byte, readChunk)
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		f.SetReadDeadline(time.Now().Add(pollInterval / 2))
		n, err := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case t.data <- chunk:
			case <-t.done:
				return
			}
		}
		if err != nil && !os.IsTimeout(err) {
			t.fail(err)
			return
		}
	}
}
