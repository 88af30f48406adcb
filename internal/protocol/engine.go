// internal/protocol/engine.go
package protocol

import (
	"context"
	"time"

	"go.uber.org/zap"

	"print-service/internal/model"
	"print-service/internal/transport"
)

// recoveryFlushSize is the run of zero bytes prefixed to every recovery
// retransmit. It pushes stale bytes out of printer buffers that stopped
// mid-frame.
const recoveryFlushSize = 8192

// Config carries the engine timings. Defaults match live printers; tests
// compress them.
type Config struct {
	// RecoveryWindow is the silence allowed after the handshake and after the
	// status-enable write before the recovery loop starts.
	RecoveryWindow time.Duration
	// RetryInterval is the cadence of recovery retransmits.
	RetryInterval time.Duration
	// OfflineCeiling bounds the recovery loop; when it elapses without a
	// qualifying status frame the session resolves offline.
	OfflineCeiling time.Duration
	// DetailWindow bounds the error-detail exchange.
	DetailWindow time.Duration
	// Deadline bounds the whole print phase. Zero disables it.
	Deadline time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		RecoveryWindow: 2 * time.Second,
		RetryInterval:  time.Second,
		OfflineCeiling: 10 * time.Second,
		DetailWindow:   time.Second,
	}
}

// Engine runs one print (or status) session over an open transport. It owns
// the state sequence, the receive buffer and every timer; the family decoder
// supplies the bytes and their meaning.
type Engine struct {
	cfg    Config
	dec    StatusDecoder
	tr     transport.Transport
	logger *zap.Logger

	inq Inquiry
	job []byte

	state     State
	buf       []byte
	drained   bool
	completed bool

	recovery *time.Timer
	retry    *time.Ticker
	offline  *time.Timer
	deadline *time.Timer
	detail   *time.Timer
}

// NewEngine builds a session engine. The transport must already be open; the
// engine closes it when Run returns.
func NewEngine(cfg Config, dec StatusDecoder, tr transport.Transport, inq Inquiry, job []byte, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		dec:    dec,
		tr:     tr,
		logger: logger.With(zap.String("family", string(dec.Family()))),
		inq:    inq,
		job:    job,
		state:  StateOpened,
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// Run drives the session to a single result code. Exactly one code is
// returned per session, and the transport is closed before returning.
func (e *Engine) Run(ctx context.Context) model.ResultCode {
	defer e.shutdown()

	e.state = StateHandshakeSent
	e.drained = e.tr.Write(e.dec.Hello(e.inq))
	e.logger.Debug("handshake sent", zap.Bool("drained", e.drained))

	if e.dec.HandshakeImplicit() {
		e.enterStatusReady()
	} else {
		e.recovery = time.NewTimer(e.cfg.RecoveryWindow)
	}

	for {
		select {
		case chunk, ok := <-e.tr.Data():
			if !ok {
				return model.ResultDisconnect
			}
			e.buf = append(e.buf, chunk...)
			if code, done := e.scan(); done {
				return code
			}

		case <-e.tr.Drained():
			e.drained = true
			if e.state == StatePrinting && e.completed {
				return model.ResultSuccess
			}

		case err := <-e.tr.Errors():
			e.logger.Warn("transport fault", zap.Error(err))
			return model.ResultDisconnect

		case <-timerC(e.recovery):
			e.recovery = nil
			e.logger.Debug("no status within recovery window, retransmitting",
				zap.String("state", e.state.String()))
			e.retry = time.NewTicker(e.cfg.RetryInterval)
			e.offline = time.NewTimer(e.cfg.OfflineCeiling)

		case <-tickerC(e.retry):
			// Retransmits ride on a flush prefix and only go out while the
			// queue is empty; stacking them behind a stalled link helps nobody.
			if e.drained {
				e.drained = e.tr.Write(e.recoveryPayload())
			}

		case <-timerC(e.offline):
			return model.ResultOffline

		case <-timerC(e.deadline):
			return model.ResultTimeout

		case <-timerC(e.detail):
			// The detail request went unanswered; the generic error stands.
			return model.ResultError

		case <-ctx.Done():
			return model.ResultDisconnect
		}
	}
}

// scan classifies buffered bytes until the decoder reports an incomplete
// frame or the session resolves.
func (e *Engine) scan() (model.ResultCode, bool) {
	for len(e.buf) > 0 {
		if e.detail != nil {
			// Any arrival during the detail window resolves the pending
			// generic error; the payload adds nothing actionable.
			return model.ResultError, true
		}

		v := e.dec.Classify(e.buf, e.state, e.inq)
		switch v.Kind {
		case VerdictIncomplete:
			return 0, false

		case VerdictSkip:
			e.consume(v.Consumed)

		case VerdictResolve:
			return v.Result, true

		case VerdictNeedDetail:
			e.consume(v.Consumed)
			e.drained = e.tr.Write(e.dec.DetailRequest())
			e.detail = time.NewTimer(e.cfg.DetailWindow)

		case VerdictReady:
			e.consume(v.Consumed)
			if e.state == StateHandshakeSent {
				e.enterStatusReady()
			}

		case VerdictStatusOK:
			e.consume(v.Consumed)
			switch e.state {
			case StateStatusReady:
				if e.inq.StatusOnly {
					return model.ResultOnline, true
				}
				e.enterPrinting()
			case StatePrinting:
				// Periodic fault-free frame; the job is still running.
			}

		case VerdictComplete:
			e.consume(v.Consumed)
			if e.state == StatePrinting {
				if e.drained {
					return model.ResultSuccess, true
				}
				// Completion before our own queue emptied: some statuses
				// answer the flow-control probe early. Hold the result until
				// the drain notification.
				e.completed = true
			}
		}
	}
	return 0, false
}

func (e *Engine) consume(n int) {
	if n < 1 {
		n = 1
	}
	if n > len(e.buf) {
		n = len(e.buf)
	}
	e.buf = e.buf[n:]
}

// enterStatusReady arms automatic status and restarts the recovery window.
func (e *Engine) enterStatusReady() {
	e.state = StateStatusReady
	e.stopRecovery()
	e.drained = e.tr.Write(e.dec.EnableStatus())
	e.recovery = time.NewTimer(e.cfg.RecoveryWindow)
	e.logger.Debug("status enabled, waiting for first frame")
}

// enterPrinting transmits the prepared job and arms the print deadline.
func (e *Engine) enterPrinting() {
	e.state = StatePrinting
	e.stopRecovery()
	e.drained = e.tr.Write(e.dec.PrepareJob(e.job))
	if e.cfg.Deadline > 0 {
		e.deadline = time.NewTimer(e.cfg.Deadline)
	}
	e.logger.Debug("job transmitted",
		zap.Int("bytes", len(e.job)), zap.Bool("drained", e.drained))
}

func (e *Engine) recoveryPayload() []byte {
	enable := e.dec.EnableStatus()
	payload := make([]byte, recoveryFlushSize+len(enable))
	copy(payload[recoveryFlushSize:], enable)
	return payload
}

func (e *Engine) stopRecovery() {
	if e.recovery != nil {
		e.recovery.Stop()
		e.recovery = nil
	}
	if e.retry != nil {
		e.retry.Stop()
		e.retry = nil
	}
	if e.offline != nil {
		e.offline.Stop()
		e.offline = nil
	}
}

func (e *Engine) shutdown() {
	e.state = StateClosed
	e.stopRecovery()
	for _, t := range []*time.Timer{e.deadline, e.detail} {
		if t != nil {
			t.Stop()
		}
	}
	e.tr.Close()
}
