// Package audio owns the playback device. Everything else reaches it only
// through Output, which exposes a scheduling handle and the device clock.
package audio

import (
	"errors"
	"time"

	"safewatch/synth"
)

const SampleRate = 44100

var ErrDeviceUnavailable = errors.New("audio device unavailable")

type Output interface {
	synth.Scheduler
	// Now is the playback clock: time rendered since the device opened.
	// It does not advance while suspended.
	Now() time.Duration
	Resume() error
	Suspend() error
	Suspended() bool
	Close()
}

// Opener creates an Output. Platform backends return errors wrapping
// ErrDeviceUnavailable.
type Opener func() (Output, error)
