// Package settings holds the user-facing engine settings: waveform, master
// volume and mute. Every mutation is persisted through a Store.
package settings

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"safewatch/synth"
)

const (
	DefaultWaveform = synth.KindSiren
	DefaultVolume   = 0.5
	VolumeStep      = 0.05
)

var ErrInvalid = errors.New("invalid setting")

type Values struct {
	Waveform synth.Kind `yaml:"waveform" json:"waveform"`
	Volume   float64    `yaml:"volume" json:"volume"`
	Muted    bool       `yaml:"muted" json:"muted"`
}

func Defaults() Values {
	return Values{Waveform: DefaultWaveform, Volume: DefaultVolume}
}

// Store persists Values. Load returns ok=false when nothing is stored yet.
type Store interface {
	Load() (Values, bool, error)
	Save(Values) error
}

// Settings is safe for concurrent readers; writers are serialized.
type Settings struct {
	store Store

	mu        sync.RWMutex
	v         Values
	listeners []func(Values)
	saveErr   error
}

// Load reads persisted values from store, falling back to defaults for
// anything missing or out of range.
func Load(store Store) (*Settings, error) {
	s := &Settings{store: store, v: Defaults()}
	v, ok, err := store.Load()
	if err != nil {
		return s, fmt.Errorf("loading settings: %w", err)
	}
	if ok {
		s.v = sanitize(v)
	}
	return s, nil
}

func sanitize(v Values) Values {
	out := Defaults()
	if _, err := synth.ParseKind(string(v.Waveform)); err == nil {
		out.Waveform = v.Waveform
	}
	if !math.IsNaN(v.Volume) && v.Volume >= 0 && v.Volume <= 1 {
		out.Volume = snap(v.Volume)
	}
	out.Muted = v.Muted
	return out
}

// snap rounds to the nearest VolumeStep and clamps to [0,1].
func snap(v float64) float64 {
	v = math.Round(v/VolumeStep) * VolumeStep
	v = math.Round(v*100) / 100
	return math.Min(1, math.Max(0, v))
}

func (s *Settings) Get() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

func (s *Settings) Waveform() synth.Kind { return s.Get().Waveform }
func (s *Settings) Volume() float64      { return s.Get().Volume }
func (s *Settings) Muted() bool          { return s.Get().Muted }

// OnChange registers fn to run after every mutation of the in-memory
// value, including ones whose save failed. SaveErr reports the failure.
func (s *Settings) OnChange(fn func(Values)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// SaveErr returns the most recent persistence failure, if any. The
// in-memory value is kept when a save fails.
func (s *Settings) SaveErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveErr
}

func (s *Settings) update(fn func(*Values)) Values {
	s.mu.Lock()
	fn(&s.v)
	v := s.v
	s.saveErr = s.store.Save(v)
	listeners := append([]func(Values){}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(v)
	}
	return v
}

func (s *Settings) SetWaveform(k synth.Kind) error {
	if _, err := synth.ParseKind(string(k)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.update(func(v *Values) { v.Waveform = k })
	return s.SaveErr()
}

// SetVolume stores v snapped to VolumeStep. Values outside [0,1] are
// rejected.
func (s *Settings) SetVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: volume %v outside [0,1]", ErrInvalid, v)
	}
	s.update(func(cur *Values) { cur.Volume = snap(v) })
	return s.SaveErr()
}

func (s *Settings) SetMuted(m bool) error {
	s.update(func(v *Values) { v.Muted = m })
	return s.SaveErr()
}

func (s *Settings) ToggleMuted() Values {
	return s.update(func(v *Values) { v.Muted = !v.Muted })
}

func (s *Settings) CycleWaveform() Values {
	return s.update(func(v *Values) { v.Waveform = v.Waveform.Next() })
}

// StepVolume moves the volume by steps×VolumeStep, clamped.
func (s *Settings) StepVolume(steps int) Values {
	return s.update(func(v *Values) { v.Volume = snap(v.Volume + float64(steps)*VolumeStep) })
}

// Apply sets every field of v at once, validating first.
func (s *Settings) Apply(v Values) error {
	if _, err := synth.ParseKind(string(v.Waveform)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if math.IsNaN(v.Volume) || v.Volume < 0 || v.Volume > 1 {
		return fmt.Errorf("%w: volume %v outside [0,1]", ErrInvalid, v.Volume)
	}
	s.update(func(cur *Values) {
		cur.Waveform = v.Waveform
		cur.Volume = snap(v.Volume)
		cur.Muted = v.Muted
	})
	return s.SaveErr()
}
