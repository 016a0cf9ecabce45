package sync_

import "sync"

// Event is a one-shot flag that goroutines can wait on, like a context that is "done" without any error. The zero
// value is ready to use.
type Event struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

func NewEvent() *Event {
	return &Event{}
}

// IsSet returns the current state of the Event.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Set marks the Event as happened, releasing all waiters. Returns false if it was already set.
func (e *Event) Set() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		return false
	}
	e.set = true
	close(e.channel())
	return true
}

// Wait returns a channel that is closed once the Event is set (which may be already).
func (e *Event) Wait() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channel()
}

// channel must be called with mu held.
func (e *Event) channel() chan struct{} {
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	return e.ch
}
