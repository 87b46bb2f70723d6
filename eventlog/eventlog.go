// Package eventlog keeps the append-only, arrival-ordered record of every
// completed analysis.
package eventlog

import (
	"sync"
	"time"

	"safewatch/log"
	"safewatch/severity"
)

// Event is created once per completed analysis and never mutated.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  severity.Level `json:"severity"`
	Message   string         `json:"message"`
	Location  string         `json:"location"`
	Reasoning []string       `json:"reasoning"`
}

// Persister receives a copy of every appended event.
type Persister interface {
	Save(Event) error
}

type Option func(*Log)

// WithStore mirrors every appended event to p. Persistence failures are
// logged; the in-memory log still records the event.
func WithStore(p Persister) Option {
	return func(l *Log) { l.store = p }
}

type Log struct {
	mu     sync.RWMutex
	events []Event
	store  Persister
}

func New(opts ...Option) *Log {
	l := &Log{}
	for _, o := range opts {
		o(l)
	}
	return l
}

// clone gives ev its own Reasoning backing array.
func clone(ev Event) Event {
	ev.Reasoning = append([]string(nil), ev.Reasoning...)
	return ev
}

func (l *Log) Append(ev Event) {
	ev = clone(ev)

	l.mu.Lock()
	l.events = append(l.events, ev)
	store := l.store
	l.mu.Unlock()

	if store != nil {
		if err := store.Save(ev); err != nil {
			log.Warnf("event %s not persisted: %v", ev.ID, err)
		}
	}
}

// Events returns a deep copy in arrival order.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	for i, ev := range l.events {
		out[i] = clone(ev)
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func (l *Log) Last() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return clone(l.events[len(l.events)-1]), true
}

// Reset drops every in-memory event. Persisted rows are kept.
func (l *Log) Reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// Filter returns the events at level, in arrival order.
func (l *Log) Filter(level severity.Level) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Severity == level {
			out = append(out, clone(ev))
		}
	}
	return out
}
