// Package synth turns a severity level into a deterministic list of tones
// and schedules them on an audio clock. Generators are pure: they keep no
// state and never touch a device.
package synth

import (
	"fmt"
	"time"

	"safewatch/severity"
)

// Floor is the near-silent gain exponential envelopes decay to.
const Floor = 0.001

type Wave int

const (
	Sine Wave = iota
	Square
)

type Envelope int

const (
	Exponential Envelope = iota
	Trapezoid
)

// Tone is one scheduled oscillator event. Offset is relative to the start
// time handed to Schedule.
type Tone struct {
	Offset   time.Duration
	Freq     float64 // base carrier frequency, Hz
	PeakFreq float64 // linear ramp target reached at mid-tone; 0 means Freq
	ModRate  float64 // FM modulator frequency, Hz; 0 disables modulation
	ModDepth float64 // FM deviation, Hz
	Duration time.Duration
	Gain     float64 // peak gain
	Wave     Wave
	Envelope Envelope
	Attack   time.Duration // trapezoid only
	Release  time.Duration // trapezoid only
}

func (t Tone) End() time.Duration { return t.Offset + t.Duration }

// Scheduler is the handle a generator's tones are placed on. start is an
// absolute position on the owner's playback clock.
type Scheduler interface {
	Schedule(start time.Duration, t Tone)
}

type Generator interface {
	Kind() Kind
	Plan(level severity.Level, volume float64) []Tone
}

// Schedule plans the tones for level and hands each one to s at
// start+Offset. It returns the plan so callers can log or inspect it.
func Schedule(s Scheduler, g Generator, level severity.Level, volume float64, start time.Duration) []Tone {
	tones := g.Plan(level, volume)
	for _, t := range tones {
		s.Schedule(start+t.Offset, t)
	}
	return tones
}

type Kind string

const (
	KindSiren Kind = "siren"
	KindBeep  Kind = "beep"
	KindPulse Kind = "pulse"
)

func Kinds() []Kind { return []Kind{KindSiren, KindBeep, KindPulse} }

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSiren, KindBeep, KindPulse:
		return k, nil
	}
	return "", fmt.Errorf("unknown waveform %q (use siren, beep, or pulse)", s)
}

// Next returns the kind after k in Kinds order, wrapping around.
func (k Kind) Next() Kind {
	kinds := Kinds()
	for i, c := range kinds {
		if c == k {
			return kinds[(i+1)%len(kinds)]
		}
	}
	return kinds[0]
}

// New returns the generator for k.
func New(k Kind) Generator {
	switch k {
	case KindBeep:
		return Beep{}
	case KindPulse:
		return Pulse{}
	default:
		return Siren{}
	}
}

// EffectiveGain is base × volume × multiplier with volume clamped to [0,1].
func EffectiveGain(base, volume, multiplier float64) float64 {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	return base * volume * multiplier
}

// row looks up level in a parameter table. Safe, and anything else not in
// the table, falls back to the low row.
func row[P any](table map[severity.Level]P, level severity.Level) P {
	if p, ok := table[level]; ok {
		return p
	}
	return table[severity.Low]
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
