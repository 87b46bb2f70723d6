// Package alert fans each completed Event out to the event log, the
// visual flash, the persistent banner and the audio engine.
package alert

import (
	"sync"
	"time"

	"safewatch/clock"
	"safewatch/eventlog"
	"safewatch/log"
	"safewatch/severity"
)

// BannerDuration is how long a high or critical banner stays up.
const BannerDuration = 5000 * time.Millisecond

var flashDurations = map[severity.Level]time.Duration{
	severity.Critical: 1200 * time.Millisecond,
	severity.High:     900 * time.Millisecond,
	severity.Medium:   700 * time.Millisecond,
	severity.Low:      400 * time.Millisecond,
	severity.Safe:     500 * time.Millisecond,
}

// FlashDuration returns the visual flash length for level.
func FlashDuration(level severity.Level) time.Duration {
	if d, ok := flashDurations[level]; ok {
		return d
	}
	return flashDurations[severity.Safe]
}

// Player is the audio side of an alert.
type Player interface {
	Play(level severity.Level, force bool) bool
}

// Sink observes channel transitions. Calls are made without the
// orchestrator's lock held, possibly from timer goroutines.
type Sink interface {
	FlashChanged(level severity.Level, on bool)
	BannerChanged(ev eventlog.Event, on bool)
	EventLogged(ev eventlog.Event)
}

type Option func(*Orchestrator)

func WithSink(s Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// channel is one timer-cleared piece of state. gen increments on every
// set so a timer only clears the value it was armed for.
type channel struct {
	gen   uint64
	on    bool
	timer clock.Timer
}

func (c *channel) arm(clk clock.Clock, d time.Duration, clear func(gen uint64)) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	c.on = true
	gen := c.gen
	c.timer = clk.AfterFunc(d, func() { clear(gen) })
}

func (c *channel) cancel() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.on = false
}

type Orchestrator struct {
	clock  clock.Clock
	player Player
	events *eventlog.Log
	sink   Sink

	mu          sync.Mutex
	flash       channel
	flashLevel  severity.Level
	banner      channel
	bannerEvent eventlog.Event
}

func New(clk clock.Clock, player Player, events *eventlog.Log, opts ...Option) *Orchestrator {
	o := &Orchestrator{clock: clk, player: player, events: events}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle applies ev to every channel. Safe events are logged and flash
// but never sound or raise the banner.
func (o *Orchestrator) Handle(ev eventlog.Event) {
	o.events.Append(ev)
	if o.sink != nil {
		o.sink.EventLogged(ev)
	}
	if ev.Severity.IsAlerting() {
		log.Alert(ev.Timestamp, string(ev.Severity), ev.Location, ev.Message)
	}

	o.mu.Lock()
	o.flashLevel = ev.Severity
	o.flash.arm(o.clock, FlashDuration(ev.Severity), o.clearFlash)
	showBanner := ev.Severity.ShowsBanner()
	if showBanner {
		o.bannerEvent = ev
		o.banner.arm(o.clock, BannerDuration, o.clearBanner)
	}
	o.mu.Unlock()

	if o.sink != nil {
		o.sink.FlashChanged(ev.Severity, true)
		if showBanner {
			o.sink.BannerChanged(ev, true)
		}
	}

	if ev.Severity.IsAlerting() && o.player != nil {
		o.player.Play(ev.Severity, false)
	}
}

func (o *Orchestrator) clearFlash(gen uint64) {
	o.mu.Lock()
	if gen != o.flash.gen || !o.flash.on {
		o.mu.Unlock()
		return
	}
	level := o.flashLevel
	o.flash.on = false
	o.flash.timer = nil
	o.mu.Unlock()

	if o.sink != nil {
		o.sink.FlashChanged(level, false)
	}
}

func (o *Orchestrator) clearBanner(gen uint64) {
	o.mu.Lock()
	if gen != o.banner.gen || !o.banner.on {
		o.mu.Unlock()
		return
	}
	ev := o.bannerEvent
	o.banner.on = false
	o.banner.timer = nil
	o.bannerEvent = eventlog.Event{}
	o.mu.Unlock()

	if o.sink != nil {
		o.sink.BannerChanged(ev, false)
	}
}

// Flash returns the active flash severity.
func (o *Orchestrator) Flash() (severity.Level, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flashLevel, o.flash.on
}

// Banner returns the event behind the active banner.
func (o *Orchestrator) Banner() (eventlog.Event, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bannerEvent, o.banner.on
}

// Reset cancels pending timers and clears the flash and banner. No timer
// armed before Reset has any effect afterwards. The event log is left
// alone so it can still be exported.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	flashOn, bannerOn := o.flash.on, o.banner.on
	level, ev := o.flashLevel, o.bannerEvent
	o.flash.cancel()
	o.banner.cancel()
	o.bannerEvent = eventlog.Event{}
	o.mu.Unlock()

	if o.sink != nil {
		if flashOn {
			o.sink.FlashChanged(level, false)
		}
		if bannerOn {
			o.sink.BannerChanged(ev, false)
		}
	}
}

func (o *Orchestrator) Events() *eventlog.Log { return o.events }
