package event

import (
	"context"

	"go.uber.org/zap"
)

// LogUnhandled returns a ready-made subscriber for UnhandledError events
// that records each failure with the given logger. Subscribe it to give
// otherwise-unobserved handler failures a home:
//
//	event.SubscribeFunc(q, event.LogUnhandled(logger))
func LogUnhandled(logger *zap.Logger) HandlerFunc[*UnhandledError] {
	return func(_ context.Context, evt *UnhandledError) error {
		logger.Error("unhandled event error",
			zap.Error(evt.Err),
			zap.Stringer("origin", evt.Origin))
		return nil
	}
}
