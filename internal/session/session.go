// internal/session/session.go
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"print-service/internal/model"
	"print-service/internal/protocol"
	"print-service/internal/transport"
)

// connectTimeout bounds the transport open, separate from the print deadline.
const connectTimeout = 10 * time.Second

// Result is the outcome of one Run call. Output is only set on the identity
// path (no destination): it is the command buffer, untouched.
type Result struct {
	Code   model.ResultCode
	Output []byte
}

// Runner executes print and status sessions. Stateless between calls; every
// Run owns its transport, buffer and timers exclusively, so concurrent Runs
// are independent.
type Runner struct {
	logger *zap.Logger
}

func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run resolves exactly once per call. With an empty destination the command
// buffer is returned unchanged and no device is touched. A failed transport
// open resolves disconnect rather than returning an error; only malformed
// requests (unknown family, bad destination) error out before a session
// starts.
func (r *Runner) Run(ctx context.Context, rawDest string, family model.PrinterFamily, cmd []byte, opts model.Options) (Result, error) {
	opts.Normalize()

	dest, err := model.ParseDestination(rawDest)
	if err != nil {
		return Result{}, fmt.Errorf("invalid destination %q: %w", rawDest, err)
	}
	if dest.Kind == model.DestinationNone {
		return Result{Code: model.ResultSuccess, Output: cmd}, nil
	}

	dec, err := protocol.NewDecoder(family)
	if err != nil {
		return Result{}, err
	}

	logger := r.logger.With(
		zap.String("destination", rawDest),
		zap.String("family", string(family)))

	tr, err := transport.New(dest, connectTimeout, logger)
	if err != nil {
		return Result{}, err
	}
	if err := tr.Open(ctx); err != nil {
		logger.Warn("transport open failed", zap.Error(err))
		return Result{Code: model.ResultDisconnect}, nil
	}

	cfg := protocol.DefaultConfig()
	cfg.Deadline = time.Duration(opts.TimeoutSeconds) * time.Second

	inq := protocol.Inquiry{StatusOnly: opts.StatusOnly, Drawer: opts.DrawerStatus}
	eng := protocol.NewEngine(cfg, dec, tr, inq, cmd, logger)

	code := eng.Run(ctx)
	logger.Info("session resolved", zap.String("result", string(code)))
	return Result{Code: code}, nil
}
