package event

import (
	"fmt"
	"runtime"
)

// Event is the interface implemented by everything placed on a pump.
// Concrete event types embed BaseEvent, which provides the provenance slot;
// events must be used as pointers so the pump can stamp them at enqueue.
//
// Events are immutable once enqueued, except for the provenance field which
// is set exactly once, at the moment the pump accepts the event.
type Event interface {
	// Source returns the recorded location of the enqueue call.
	Source() Source

	// stamp records the enqueue call site. It is unexported so that only
	// the pump can set provenance; embedding BaseEvent provides it.
	stamp(Source)
}

// BaseEvent provides the provenance slot required by the Event interface.
// Application event types embed it:
//
//	type DocumentSaved struct {
//	    event.BaseEvent
//	    Path string
//	}
type BaseEvent struct {
	src     Source
	stamped bool
}

// Source returns the recorded enqueue call site, or the zero Source if the
// event has not been enqueued yet.
func (b *BaseEvent) Source() Source {
	return b.src
}

// stamp records the enqueue call site. Subsequent calls are ignored; the
// pump always stamps under its queue lock, so no further synchronization
// is needed here.
func (b *BaseEvent) stamp(s Source) {
	if b.stamped {
		return
	}
	b.stamped = true
	b.src = s
}

// Source identifies the call site that enqueued an event. It is diagnostic
// provenance only and plays no part in dispatch.
type Source struct {
	// File is the source file of the enqueue call.
	File string

	// Function is the fully qualified function containing the call.
	Function string

	// Line is the line number of the call.
	Line int
}

// IsZero returns true if no call site was recorded.
func (s Source) IsZero() bool {
	return s == Source{}
}

// String returns a human-readable "file:line (function)" form.
func (s Source) String() string {
	if s.IsZero() {
		return "unknown"
	}
	if s.Function == "" {
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%s:%d (%s)", s.File, s.Line, s.Function)
}

// callerSource captures the call site skip+1 frames above the caller.
// A skip of 1 records the caller's caller, which is what the public
// enqueue entry points want.
func callerSource(skip int) Source {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Source{}
	}
	src := Source{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		src.Function = fn.Name()
	}
	return src
}
