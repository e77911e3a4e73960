package event

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Option configures a Pump (and, through NewWorker, the pump a worker owns).
type Option func(*Pump)

// WithLogger sets the structured logger used for pump diagnostics and the
// last-resort failure path. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pump) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock sets the clock used for dispatch latency accounting. Tests
// inject a mock clock; the default is the wall clock.
func WithClock(c clock.Clock) Option {
	return func(p *Pump) {
		if c != nil {
			p.clock = c
		}
	}
}
