// internal/transport/tcp.go
package transport

import (
	"fmt"
	"net"
	"time"

	"context"

	"go.uber.org/zap"

	"print-service/internal/model"
)

// TCPTransport connects to a network printer on the raw-print port (9100).
type TCPTransport struct {
	*pump
	addr    string
	timeout time.Duration
	conn    net.Conn
}

// NewTCPTransport creates a transport for a network destination.
func NewTCPTransport(dest model.Destination, timeout time.Duration, logger *zap.Logger) *TCPTransport {
	return &TCPTransport{
		pump:    newPump(logger.With(zap.String("transport", "tcp"), zap.String("host", dest.Host))),
		addr:    dest.Address(),
		timeout: timeout,
	}
}

// Open dials the printer. Connection refused or reset surfaces as a failed
// open, which the session maps to disconnect.
func (t *TCPTransport) Open(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: t.timeout, KeepAlive: 30 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		t.logger.Warn("TCP connect failed", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", t.addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
		tcpConn.SetNoDelay(true)
	}

	t.conn = conn
	t.closeFn = conn.Close
	go t.writeLoop(conn)
	go t.readLoop(conn)

	t.logger.Info("TCP connection opened")
	return nil
}

func (t *TCPTransport) Close() error {
	return t.close()
}
