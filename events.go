package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"safewatch/eventlog"
	"safewatch/severity"
)

type FlashMsg struct {
	Level severity.Level
	On    bool
}

type BannerMsg struct {
	Event eventlog.Event
	On    bool
}

type EventMsg struct{ Event eventlog.Event }

// SessionMsg reports the result of a start/stop toggle.
type SessionMsg struct {
	Running bool
	Err     error
}

// tuiSink forwards orchestrator transitions to the running TUI program.
// Before the program starts, and after it exits, messages are dropped.
type tuiSink struct{}

func (tuiSink) FlashChanged(level severity.Level, on bool) { sendTUI(FlashMsg{Level: level, On: on}) }
func (tuiSink) BannerChanged(ev eventlog.Event, on bool)   { sendTUI(BannerMsg{Event: ev, On: on}) }
func (tuiSink) EventLogged(ev eventlog.Event)              { sendTUI(EventMsg{Event: ev}) }

// consoleSink prints alerts one per line for headless runs.
type consoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleSink(w io.Writer) *consoleSink {
	return &consoleSink{w: w}
}

func (c *consoleSink) FlashChanged(severity.Level, bool)  {}
func (c *consoleSink) BannerChanged(eventlog.Event, bool) {}

func (c *consoleSink) EventLogged(ev eventlog.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, formatEvent(ev))
}

func formatEvent(ev eventlog.Event) string {
	line := fmt.Sprintf("%s  %-8s  %s", ev.Timestamp.Format("15:04:05"), strings.ToUpper(ev.Severity.String()), ev.Message)
	if ev.Location != "" {
		line += " @ " + ev.Location
	}
	return line
}
