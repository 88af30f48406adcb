// internal/transport/factory.go
package transport

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"print-service/internal/model"
)

// New creates the transport for a parsed destination.
func New(dest model.Destination, connectTimeout time.Duration, logger *zap.Logger) (Transport, error) {
	switch dest.Kind {
	case model.DestinationNetwork:
		return NewTCPTransport(dest, connectTimeout, logger), nil
	case model.DestinationSerial:
		return NewSerialTransport(dest, logger), nil
	case model.DestinationUSB:
		return NewCharDevTransport(dest, logger), nil
	case model.DestinationUSBBus:
		return NewUSBTransport(dest, logger), nil
	default:
		return nil, fmt.Errorf("unsupported destination kind: %s", dest.Kind)
	}
}
