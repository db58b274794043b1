package export

import (
	"sync"
)

// ProgressEvent is one step of an export progress stream.
//
// Non-terminal events carry Current, Total and Status. The terminal event
// is either a success marker (Done set, Current == Total) or an error event
// (Error set) that excludes any further events.
type ProgressEvent struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e ProgressEvent) Terminal() bool {
	return e.Done || e.Error != ""
}

// Failed reports whether the event is a terminal error.
func (e ProgressEvent) Failed() bool {
	return e.Error != ""
}

// ProgressFunc receives progress events. It may be nil.
type ProgressFunc func(ProgressEvent)

// ProgressEmitter enforces the ordering guarantees of a single progress
// stream: Current never decreases and at most one terminal event is
// delivered. Events emitted after the terminal event are dropped.
type ProgressEmitter struct {
	mu       sync.Mutex
	fn       ProgressFunc
	last     ProgressEvent
	started  bool
	finished bool
}

// NewProgressEmitter creates an emitter that forwards to fn.
func NewProgressEmitter(fn ProgressFunc) *ProgressEmitter {
	return &ProgressEmitter{fn: fn}
}

// Report emits a non-terminal event. A Current lower than the previous
// event is raised to the previous value.
func (p *ProgressEmitter) Report(current, total int, status string) {
	p.emit(ProgressEvent{Current: current, Total: total, Status: status})
}

// Complete emits the terminal success event with Current == Total.
func (p *ProgressEmitter) Complete(total int, status string) {
	p.emit(ProgressEvent{Current: total, Total: total, Status: status, Done: true})
}

// Fail emits the terminal error event.
func (p *ProgressEmitter) Fail(err error) {
	if err == nil {
		return
	}
	p.emit(ProgressEvent{Error: err.Error()})
}

// Func returns a ProgressFunc that reports through the emitter. Terminal
// events passed to it are downgraded to plain reports so that sub-steps can
// never end the stream.
func (p *ProgressEmitter) Func() ProgressFunc {
	return func(e ProgressEvent) {
		if e.Failed() {
			return
		}
		p.Report(e.Current, e.Total, e.Status)
	}
}

// Last returns the most recently delivered event.
func (p *ProgressEmitter) Last() (ProgressEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.started
}

// Finished reports whether the terminal event has been delivered.
func (p *ProgressEmitter) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

func (p *ProgressEmitter) emit(e ProgressEvent) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	if !e.Failed() && p.started && e.Current < p.last.Current {
		e.Current = p.last.Current
	}
	if !e.Failed() && e.Total < e.Current {
		e.Total = e.Current
	}
	p.last = e
	p.started = true
	p.finished = e.Terminal()
	fn := p.fn
	p.mu.Unlock()

	if fn != nil {
		fn(e)
	}
}
