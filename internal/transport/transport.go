// internal/transport/transport.go
package transport

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Transport is one byte-stream connection to a printer. Writes are queued and
// flushed by a background pump; Write reports drain semantics: true while the
// outbound queue is below its high-water mark, false under backpressure.
//
// Inbound chunks arrive on Data, queue-empty notifications on Drained,
// transport-level faults on Errors. Close releases all resources and is safe
// to call multiple times.
type Transport interface {
	Open(ctx context.Context) error
	Write(p []byte) bool
	Data() <-chan []byte
	Drained() <-chan struct{}
	Errors() <-chan error
	Close() error
}

// highWater is the outbound queue depth (bytes) beyond which Write reports
// backpressure.
const highWater = 32 * 1024

const readChunk = 4096

// pump implements the queued write/read machinery shared by every transport.
// The owning transport supplies the open stream via bind and calls run.
type pump struct {
	logger *zap.Logger

	mu      sync.Mutex
	queue   [][]byte
	pending int
	kick    chan struct{}

	data    chan []byte
	drained chan struct{}
	errs    chan error
	done    chan struct{}

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
}

func newPump(logger *zap.Logger) *pump {
	return &pump{
		logger:  logger,
		kick:    make(chan struct{}, 1),
		data:    make(chan []byte, 16),
		drained: make(chan struct{}, 1),
		errs:    make(chan error, 4),
		done:    make(chan struct{}),
	}
}

func (p *pump) Data() <-chan []byte      { return p.data }
func (p *pump) Drained() <-chan struct{} { return p.drained }
func (p *pump) Errors() <-chan error     { return p.errs }

// Write enqueues a chunk for transmission. It never blocks and never drops
// data; the return value is the drain flag.
func (p *pump) Write(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	buf := make([]byte, len(b))
	copy(buf, b)

	p.mu.Lock()
	p.queue = append(p.queue, buf)
	p.pending += len(buf)
	accepted := p.pending <= highWater
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
	return accepted
}

// writeLoop drains the queue into w. A short write or write error is a
// transport fault.
func (p *pump) writeLoop(w io.Writer) {
	for {
		select {
		case <-p.done:
			return
		case <-p.kick:
		}
		for {
			p.mu.Lock()
			if len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			chunk := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()

			n, err := w.Write(chunk)

			p.mu.Lock()
			p.pending -= len(chunk)
			empty := len(p.queue) == 0
			p.mu.Unlock()

			if err != nil {
				p.fail(err)
				return
			}
			if n != len(chunk) {
				p.fail(io.ErrShortWrite)
				return
			}
			if empty {
				select {
				case p.drained <- struct{}{}:
				default:
				}
			}
		}
	}
}

// readLoop forwards inbound chunks until the stream errors or the transport
// closes.
func (p *pump) readLoop(r io.Reader) {
	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.data <- chunk:
			case <-p.done:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				p.fail(err)
			} else {
				p.fail(io.EOF)
			}
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
	}
}

// fail reports a transport fault unless the transport is already closed.
func (p *pump) fail(err error) {
	select {
	case <-p.done:
		return
	default:
	}
	if p.logger != nil {
		p.logger.Debug("transport fault", zap.Error(err))
	}
	select {
	case p.errs <- err:
	default:
	}
}

// close shuts the pumps down and invokes the transport's close function once.
func (p *pump) close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.closeFn != nil {
			p.closeErr = p.closeFn()
		}
	})
	return p.closeErr
}
