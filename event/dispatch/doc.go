// Package dispatch provides low-level, fault-isolated execution of event
// handlers.
//
// The event package decides which handlers should see an event; dispatch is
// responsible for actually running one handler safely. The Executor recovers
// from handler panics, converts them into *PanicError values, and captures
// timing for every execution, so a misbehaving subscriber can never take
// down the pump or its sibling handlers.
//
// # Basic Usage
//
//	exec := dispatch.NewExecutor()
//	result := exec.Execute(ctx, evt, handler)
//	if result.Panicked {
//	    log.Printf("handler panicked: %v", result.PanicValue)
//	}
//
// Results report success, a returned error, or a recovered panic along with
// the captured stack trace and execution duration.
package dispatch
