package synth

import (
	"time"

	"safewatch/severity"
)

const beepBaseGain = 0.4

type beepParams struct {
	freq     float64
	count    int
	interval time.Duration
	duration time.Duration
	volume   float64
}

var beepTable = map[severity.Level]beepParams{
	severity.Critical: {freq: 1760, count: 5, interval: ms(120), duration: ms(80), volume: 1.0},
	severity.High:     {freq: 1320, count: 3, interval: ms(180), duration: ms(110), volume: 0.85},
	severity.Medium:   {freq: 1040, count: 2, interval: ms(250), duration: ms(140), volume: 0.7},
	severity.Low:      {freq: 880, count: 1, duration: ms(180), volume: 0.55},
}

// Beep repeats a short fixed-pitch sine with a fast exponential decay.
type Beep struct{}

func (Beep) Kind() Kind { return KindBeep }

func (Beep) Plan(level severity.Level, volume float64) []Tone {
	p := row(beepTable, level)
	gain := EffectiveGain(beepBaseGain, volume, p.volume)
	tones := make([]Tone, 0, p.count)
	for i := 0; i < p.count; i++ {
		tones = append(tones, Tone{
			Offset:   time.Duration(i) * p.interval,
			Freq:     p.freq,
			PeakFreq: p.freq,
			Duration: p.duration,
			Gain:     gain,
			Wave:     Sine,
			Envelope: Exponential,
		})
	}
	return tones
}
