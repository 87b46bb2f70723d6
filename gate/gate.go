// Package gate enforces single-flight analysis: at most one oracle call is
// outstanding, and frames submitted meanwhile are dropped rather than
// queued.
package gate

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"safewatch/eventlog"
	"safewatch/log"
	"safewatch/oracle"
	"safewatch/severity"
)

type Gate struct {
	analyzer oracle.Analyzer
	now      func() time.Time
	newID    func() string

	inFlight atomic.Bool
	dropped  atomic.Int64
	failed   atomic.Int64
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func WithIDs(fn func() string) Option {
	return func(g *Gate) { g.newID = fn }
}

func New(a oracle.Analyzer, opts ...Option) *Gate {
	g := &Gate{
		analyzer: a,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Submit analyses frame unless another analysis is in flight. ok is false
// when the frame was dropped or the oracle failed; failures are logged,
// never returned.
func (g *Gate) Submit(ctx context.Context, frame []byte) (ev eventlog.Event, ok bool) {
	if !g.inFlight.CompareAndSwap(false, true) {
		g.dropped.Add(1)
		log.FrameDropped("analysis in flight")
		return eventlog.Event{}, false
	}
	defer g.inFlight.Store(false)

	v, err := g.analyzer.Analyze(ctx, frame)
	if err != nil {
		g.failed.Add(1)
		switch {
		case errors.Is(err, context.Canceled):
			log.Debug("analysis cancelled")
		case errors.Is(err, oracle.ErrMalformedVerdict):
			log.Warnf("oracle returned malformed verdict: %v", err)
		default:
			log.Errorf("oracle analysis failed: %v", err)
		}
		return eventlog.Event{}, false
	}
	if v == nil {
		g.failed.Add(1)
		log.Warn("oracle returned no verdict")
		return eventlog.Event{}, false
	}
	return g.normalize(v), true
}

func (g *Gate) normalize(v *oracle.Verdict) eventlog.Event {
	level := v.Severity
	if !v.Safe && !level.Valid() {
		log.Warnf("oracle reported unknown severity %q, recording as safe", level)
	}
	if v.Safe || !level.Valid() {
		level = severity.Safe
	}
	return eventlog.Event{
		ID:        g.newID(),
		Timestamp: g.now(),
		Severity:  level,
		Message:   v.Message,
		Location:  v.Location,
		Reasoning: SplitReasoning(v.Reasoning),
	}
}

func (g *Gate) InFlight() bool { return g.inFlight.Load() }

// Dropped counts frames rejected because an analysis was in flight.
func (g *Gate) Dropped() int64 { return g.dropped.Load() }

// Failed counts analyses that produced no event.
func (g *Gate) Failed() int64 { return g.failed.Load() }

// Name reports the analyzer behind the gate.
func (g *Gate) Name() string { return g.analyzer.Name() }

var (
	leadingMarker = regexp.MustCompile(`^\s*\d+[.)]\s`)
	stepMarker    = regexp.MustCompile(`(?:^|\s)\d+[.)]\s+`)
)

// SplitReasoning splits "1. a 2. b" into ["a", "b"]. Only text that opens
// with a numbered marker is split; anything else comes back as a single
// step. The result is never empty.
func SplitReasoning(text string) []string {
	if !leadingMarker.MatchString(text) {
		return []string{strings.TrimSpace(text)}
	}
	var steps []string
	for _, s := range stepMarker.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	if len(steps) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return steps
}
