// Package engine owns the lazily opened audio output and turns severity
// levels into scheduled tones using the generator the settings select.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"safewatch/audio"
	"safewatch/log"
	"safewatch/settings"
	"safewatch/severity"
	"safewatch/synth"
)

// Lead is how far ahead of the device clock tones are scheduled.
const Lead = 20 * time.Millisecond

type Engine struct {
	settings *settings.Settings
	open     audio.Opener
	gens     map[synth.Kind]synth.Generator

	mu      sync.Mutex
	out     audio.Output
	armed   bool // a user gesture allows the device to be created or resumed
	lastErr error
	closed  bool
}

// New builds an engine. gens override the built-in generator for their
// Kind; nil opener means audio.NewOutput.
func New(s *settings.Settings, open audio.Opener, gens ...synth.Generator) *Engine {
	if open == nil {
		open = audio.NewOutput
	}
	e := &Engine{
		settings: s,
		open:     open,
		gens:     make(map[synth.Kind]synth.Generator),
	}
	for _, k := range synth.Kinds() {
		e.gens[k] = synth.New(k)
	}
	for _, g := range gens {
		e.gens[g.Kind()] = g
	}
	return e
}

// Gesture records a user-initiated action and brings the device up.
func (e *Engine) Gesture() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.armed = true
	return e.ensureReady()
}

// ensureReady must be called with mu held.
func (e *Engine) ensureReady() error {
	if e.out == nil {
		if !e.armed {
			return audio.ErrDeviceUnavailable
		}
		out, err := e.open()
		if err != nil {
			return e.fail(err)
		}
		e.out = out
		log.Info("audio output opened")
	}
	if e.out.Suspended() {
		if !e.armed {
			return audio.ErrDeviceUnavailable
		}
		if err := e.out.Resume(); err != nil {
			return e.fail(err)
		}
	}
	return nil
}

// fail records err and disarms until the next gesture.
func (e *Engine) fail(err error) error {
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		err = fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	e.armed = false
	e.lastErr = err
	log.Warnf("audio disabled until next gesture: %v", err)
	return err
}

// Play schedules the tones for level. force bypasses mute and the safe
// suppression and counts as a user gesture. It reports whether anything
// was scheduled.
func (e *Engine) Play(level severity.Level, force bool) bool {
	v := e.settings.Get()
	if !force && v.Muted {
		return false
	}
	if !force && !level.IsAlerting() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if force {
		e.armed = true
	}
	if err := e.ensureReady(); err != nil {
		return false
	}

	g := e.gens[v.Waveform]
	if g == nil {
		g = e.gens[settings.DefaultWaveform]
	}
	tones := synth.Schedule(e.out, g, level, v.Volume, e.out.Now()+Lead)
	log.Debug(fmt.Sprintf("scheduled %d %s tones for %s", len(tones), g.Kind(), level))
	return len(tones) > 0
}

// Ready reports whether an output is open and running.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out != nil && !e.out.Suspended()
}

func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Suspend pauses the device clock. The next gesture or forced play resumes
// it.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out == nil {
		return nil
	}
	e.armed = false
	return e.out.Suspend()
}

func (e *Engine) Settings() *settings.Settings { return e.settings }

// Release closes the device and disarms. The next gesture opens a new one.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.release()
}

func (e *Engine) release() {
	e.armed = false
	if e.out != nil {
		e.out.Close()
		e.out = nil
		log.Info("audio output released")
	}
}

// Close releases the device for good. It is safe to call more than once;
// after it Play is a no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.release()
}
