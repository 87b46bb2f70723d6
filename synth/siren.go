package synth

import (
	"time"

	"safewatch/severity"
)

const sirenBaseGain = 0.3

type sirenParams struct {
	base, peak float64
	modRate    float64
	modDepth   float64
	duration   time.Duration
	count      int
	interval   time.Duration
	volume     float64
}

// Modulation depth and rate rise with urgency; critical sounds twice.
var sirenTable = map[severity.Level]sirenParams{
	severity.Critical: {base: 880, peak: 1480, modRate: 9, modDepth: 140, duration: ms(1200), count: 2, interval: ms(1300), volume: 1.0},
	severity.High:     {base: 660, peak: 1100, modRate: 6, modDepth: 90, duration: ms(1000), count: 1, volume: 0.85},
	severity.Medium:   {base: 520, peak: 820, modRate: 4, modDepth: 50, duration: ms(800), count: 1, volume: 0.7},
	severity.Low:      {base: 440, peak: 560, modRate: 2, modDepth: 20, duration: ms(600), count: 1, volume: 0.5},
}

// Siren is an FM carrier with a base→peak→base pitch ramp and an
// exponential decay.
type Siren struct{}

func (Siren) Kind() Kind { return KindSiren }

func (Siren) Plan(level severity.Level, volume float64) []Tone {
	p := row(sirenTable, level)
	gain := EffectiveGain(sirenBaseGain, volume, p.volume)
	tones := make([]Tone, 0, p.count)
	for i := 0; i < p.count; i++ {
		tones = append(tones, Tone{
			Offset:   time.Duration(i) * p.interval,
			Freq:     p.base,
			PeakFreq: p.peak,
			ModRate:  p.modRate,
			ModDepth: p.modDepth,
			Duration: p.duration,
			Gain:     gain,
			Wave:     Sine,
			Envelope: Exponential,
		})
	}
	return tones
}
