package synth

import (
	"math"
	"time"
)

// Sample returns the tone's signal at s seconds after its own start.
// Phase is computed in closed form so the value depends only on s.
func (t Tone) Sample(s float64) float64 {
	d := t.Duration.Seconds()
	if s < 0 || s >= d || t.Gain <= 0 {
		return 0
	}
	v := math.Sin(t.phase(s))
	if t.Wave == Square {
		if v >= 0 {
			v = 1
		} else {
			v = -1
		}
	}
	return v * t.envelope(s)
}

// phase integrates the instantaneous frequency: linear triangle ramp
// Freq→PeakFreq→Freq plus ModDepth·sin(2π·ModRate·s).
func (t Tone) phase(s float64) float64 {
	d := t.Duration.Seconds()
	peak := t.PeakFreq
	if peak == 0 {
		peak = t.Freq
	}
	var ramp float64
	if d > 0 {
		if s <= d/2 {
			ramp = s * s / d
		} else {
			ramp = 2*s - s*s/d - d/2
		}
	}
	p := 2 * math.Pi * (t.Freq*s + (peak-t.Freq)*ramp)
	if t.ModRate > 0 {
		p += t.ModDepth / t.ModRate * (1 - math.Cos(2*math.Pi*t.ModRate*s))
	}
	return p
}

// InstantFreq is the carrier frequency at s, used by tests and the doctor.
func (t Tone) InstantFreq(s float64) float64 {
	d := t.Duration.Seconds()
	peak := t.PeakFreq
	if peak == 0 {
		peak = t.Freq
	}
	tri := 0.0
	if d > 0 {
		if s <= d/2 {
			tri = 2 * s / d
		} else {
			tri = 2 * (d - s) / d
		}
	}
	f := t.Freq + (peak-t.Freq)*tri
	if t.ModRate > 0 {
		f += t.ModDepth * math.Sin(2*math.Pi*t.ModRate*s)
	}
	return f
}

func (t Tone) envelope(s float64) float64 {
	d := t.Duration.Seconds()
	switch t.Envelope {
	case Trapezoid:
		a, r := t.Attack.Seconds(), t.Release.Seconds()
		switch {
		case a > 0 && s < a:
			return t.Gain * s / a
		case r > 0 && s > d-r:
			return t.Gain * (d - s) / r
		}
		return t.Gain
	default:
		if t.Gain <= Floor {
			return t.Gain
		}
		return t.Gain * math.Pow(Floor/t.Gain, s/d)
	}
}

// Length is the span from the first tone's offset zero to the last tone's end.
func Length(tones []Tone) time.Duration {
	var end time.Duration
	for _, t := range tones {
		end = max(end, t.End())
	}
	return end
}

// Render mixes tones into a mono buffer at sampleRate, clipped to [-1,1].
func Render(tones []Tone, sampleRate int) []float32 {
	n := int(Length(tones).Seconds() * float64(sampleRate))
	buf := make([]float32, n)
	for _, t := range tones {
		first := int(t.Offset.Seconds() * float64(sampleRate))
		count := int(t.Duration.Seconds() * float64(sampleRate))
		for i := 0; i < count && first+i < n; i++ {
			buf[first+i] += float32(t.Sample(float64(i) / float64(sampleRate)))
		}
	}
	for i, v := range buf {
		buf[i] = clip(v)
	}
	return buf
}

func ToInt16(buf []float32) []int16 {
	out := make([]int16, len(buf))
	for i, v := range buf {
		out[i] = int16(clip(v) * 32767)
	}
	return out
}

func clip(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
