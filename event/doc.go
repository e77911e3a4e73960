// Package event provides the in-process event coordination core: a
// thread-safe FIFO event queue with typed subscriptions and a cooperative
// multi-phase shutdown protocol that lets subscribers veto or react to
// termination before resources are released.
//
// # Architecture
//
// The package consists of a few interconnected components:
//
//	                 ┌────────────────────────────────────────┐
//	                 │                 Pump                    │
//	                 │  - FIFO queue + availability signal     │
//	                 │  - Lifecycle state machine              │
//	                 │  - Completion routing                   │
//	                 └────────────────────────────────────────┘
//	                                   │
//	           ┌───────────────────────┼───────────────────────┐
//	           ▼                       ▼                       ▼
//	 ┌─────────────────┐     ┌─────────────────┐     ┌─────────────────┐
//	 │    Registry     │     │    dispatch     │     │     Worker      │
//	 │  - Typed subs   │     │  - Panic-safe   │     │  - Dedicated    │
//	 │  - Assignable   │     │    executor     │     │    dispatch     │
//	 │    matching     │     │  - Results      │     │    goroutine    │
//	 └─────────────────┘     └─────────────────┘     └─────────────────┘
//
// Producers call the enqueue family from any goroutine; the pump stores the
// event under lock and signals availability. A single consumer, either an
// explicit caller of HandleOne/HandleAll or a Worker, dequeues one event at
// a time and asks the registry to invoke every matching handler. FIFO order
// of enqueue is the dispatch order, and all handlers of one event run to
// completion, each fault-isolated, before the next event is dequeued.
//
// # Typed Subscriptions
//
// Handlers declare the event type they observe through the generic
// Subscribe functions. Declaring an interface type subscribes to every
// assignable event, so Event itself observes the whole stream:
//
//	sub, err := event.SubscribeFunc(q,
//	    func(ctx context.Context, evt *DocumentSaved) error {
//	        return index.Update(evt.Path)
//	    })
//	defer sub.Cancel()
//
// Subscriptions hold strong references; cancel them (or call Unsubscribe)
// when the handler's life ends. A cancelled subscription is pruned lazily
// by the next registry scan.
//
// # Shutdown Protocol
//
// Shutdown is cooperative and strictly ordered:
//
//  1. RequestClose enqueues a CloseRequest. Its handlers may veto by
//     clearing CanBeginClose; if the flag survives, the pump calls
//     BeginClose automatically.
//  2. BeginClose purges queued close requests, enqueues Closing and stops
//     accepting subscriptions and further close requests.
//  3. After Closing is handled the pump enqueues the terminal Closed event;
//     from that point every enqueue fails with ErrPumpClosed.
//  4. After Closed is handled the pump clears its registry and releases
//     everyone blocked in WaitForClosed.
//
// # Failure Routing
//
// A handler error (or recovered panic) propagates to whoever is listening
// for that dispatch: the caller blocked in EnqueueAndWait or the channel
// from EnqueueAndWaitAsync. If nobody is listening the failure is
// re-enqueued as an UnhandledError event, guaranteeing every failure is
// observable somewhere. Failures that cannot be delivered at all (the pump
// is closed, or the UnhandledError handler itself failed) take the
// last-resort path through the configured logger.
//
// # Events
//
// Application events embed BaseEvent and are enqueued as pointers; the pump
// stamps each one with the source location of the enqueue call:
//
//	type DocumentSaved struct {
//	    event.BaseEvent
//	    Path string
//	}
//
//	_ = q.Enqueue(&DocumentSaved{Path: path})
package event
