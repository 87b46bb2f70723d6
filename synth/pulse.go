package synth

import (
	"time"

	"safewatch/severity"
)

const (
	pulseBaseGain = 0.25

	// Fractions of each pulse spent ramping in and out.
	pulseAttack  = 0.15
	pulseRelease = 0.25
)

type pulseParams struct {
	freq     float64
	count    int
	duration time.Duration
	interval time.Duration
	volume   float64
}

// Low is tuned louder than medium: its single long pulse is otherwise easy
// to miss under machinery noise.
var pulseTable = map[severity.Level]pulseParams{
	severity.Critical: {freq: 220, count: 4, duration: ms(150), interval: ms(200), volume: 1.0},
	severity.High:     {freq: 180, count: 3, duration: ms(180), interval: ms(260), volume: 0.85},
	severity.Medium:   {freq: 150, count: 2, duration: ms(220), interval: ms(320), volume: 0.65},
	severity.Low:      {freq: 120, count: 1, duration: ms(260), volume: 0.7},
}

// Pulse emits square-wave bursts shaped by a linear attack/hold/release
// envelope.
type Pulse struct{}

func (Pulse) Kind() Kind { return KindPulse }

func (Pulse) Plan(level severity.Level, volume float64) []Tone {
	p := row(pulseTable, level)
	gain := EffectiveGain(pulseBaseGain, volume, p.volume)
	attack := time.Duration(float64(p.duration) * pulseAttack)
	release := time.Duration(float64(p.duration) * pulseRelease)
	tones := make([]Tone, 0, p.count)
	for i := 0; i < p.count; i++ {
		tones = append(tones, Tone{
			Offset:   time.Duration(i) * p.interval,
			Freq:     p.freq,
			PeakFreq: p.freq,
			Duration: p.duration,
			Gain:     gain,
			Wave:     Square,
			Envelope: Trapezoid,
			Attack:   attack,
			Release:  release,
		})
	}
	return tones
}
