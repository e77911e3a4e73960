package event

import (
	"sync/atomic"
	"time"
)

// pumpStats holds the pump's atomic counters.
type pumpStats struct {
	enqueued        atomic.Uint64
	dispatched      atomic.Uint64
	dropped         atomic.Uint64
	purged          atomic.Uint64
	handlersInvoked atomic.Uint64
	handlerErrors   atomic.Uint64
	handlerPanics   atomic.Uint64
	unobserved      atomic.Uint64
	totalDispatchNs atomic.Int64
	maxDepth        atomic.Int64
}

// observeDepth raises maxDepth to depth if it is a new high-water mark.
func (s *pumpStats) observeDepth(depth int) {
	d := int64(depth)
	for {
		cur := s.maxDepth.Load()
		if d <= cur || s.maxDepth.CompareAndSwap(cur, d) {
			return
		}
	}
}

// Stats is a point-in-time snapshot of pump activity.
type Stats struct {
	// Enqueued is the total number of events accepted into the FIFO.
	Enqueued uint64

	// Dispatched is the number of events fully dispatched.
	Dispatched uint64

	// Dropped is the number of close requests silently dropped because
	// shutdown had already begun.
	Dropped uint64

	// Purged is the number of queued close requests removed by BeginClose.
	Purged uint64

	// HandlersInvoked is the total number of handler executions.
	HandlersInvoked uint64

	// HandlerErrors is the number of handlers that returned an error or
	// panicked.
	HandlerErrors uint64

	// HandlerPanics is the number of handlers that panicked.
	HandlerPanics uint64

	// Unobserved is the number of dispatch failures nobody was waiting on,
	// re-enqueued as UnhandledError events (or escalated).
	Unobserved uint64

	// QueueDepth is the current FIFO length.
	QueueDepth int

	// MaxQueueDepth is the high-water mark of the FIFO length.
	MaxQueueDepth int

	// ActiveSubscriptions is the current number of live subscriptions.
	ActiveSubscriptions int

	// TotalDispatchTime is the cumulative time spent dispatching events.
	TotalDispatchTime time.Duration

	// AvgDispatchTime is TotalDispatchTime divided by Dispatched.
	AvgDispatchTime time.Duration
}

// Stats returns a snapshot of the pump's counters. Values are read without
// a lock and may be slightly inconsistent with each other while the pump is
// active.
func (p *Pump) Stats() Stats {
	dispatched := p.stats.dispatched.Load()
	totalNs := p.stats.totalDispatchNs.Load()

	var avgNs int64
	if dispatched > 0 {
		avgNs = totalNs / int64(dispatched)
	}

	p.mu.Lock()
	depth := len(p.fifo)
	p.mu.Unlock()

	return Stats{
		Enqueued:            p.stats.enqueued.Load(),
		Dispatched:          dispatched,
		Dropped:             p.stats.dropped.Load(),
		Purged:              p.stats.purged.Load(),
		HandlersInvoked:     p.stats.handlersInvoked.Load(),
		HandlerErrors:       p.stats.handlerErrors.Load(),
		HandlerPanics:       p.stats.handlerPanics.Load(),
		Unobserved:          p.stats.unobserved.Load(),
		QueueDepth:          depth,
		MaxQueueDepth:       int(p.stats.maxDepth.Load()),
		ActiveSubscriptions: p.registry.Len(),
		TotalDispatchTime:   time.Duration(totalNs),
		AvgDispatchTime:     time.Duration(avgNs),
	}
}
