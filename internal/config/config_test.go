package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveWriteTimeout(t *testing.T) {
	cfg := &Config{}
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Printer.TimeoutSeconds = 300

	// The write timeout must outlive a session running to its deadline.
	assert.Equal(t, 330*time.Second, cfg.EffectiveWriteTimeout())

	// An already generous timeout stands.
	cfg.Server.WriteTimeout = 600 * time.Second
	assert.Equal(t, 600*time.Second, cfg.EffectiveWriteTimeout())

	// No print deadline means sessions are unbounded; writes cannot be cut.
	cfg.Printer.TimeoutSeconds = 0
	assert.Equal(t, time.Duration(0), cfg.EffectiveWriteTimeout())

	// An explicitly disabled write timeout stays disabled.
	cfg.Server.WriteTimeout = 0
	cfg.Printer.TimeoutSeconds = 300
	assert.Equal(t, time.Duration(0), cfg.EffectiveWriteTimeout())
}
