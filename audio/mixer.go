package audio

import (
	"encoding/binary"
	"sync"
	"time"

	"safewatch/synth"
)

type voice struct {
	start, end uint64 // frames
	tone       synth.Tone
}

// Mixer sums scheduled tones into the device buffer. Its clock is the
// number of frames rendered so far, so it only moves when the backend
// pulls audio.
type Mixer struct {
	rate int

	mu      sync.Mutex
	pos     uint64
	voices  []voice
	scratch []float32
}

func NewMixer(sampleRate int) *Mixer {
	return &Mixer{rate: sampleRate}
}

func (m *Mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.framesToDuration(m.pos)
}

func (m *Mixer) framesToDuration(f uint64) time.Duration {
	return time.Duration(f) * time.Second / time.Duration(m.rate)
}

func (m *Mixer) durationToFrames(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d.Seconds() * float64(m.rate))
}

// Schedule queues t to begin at start on the mixer clock. A start already
// in the past begins at the current position.
func (m *Mixer) Schedule(start time.Duration, t synth.Tone) {
	if t.Gain <= 0 || t.Duration <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	first := max(m.durationToFrames(start), m.pos)
	m.voices = append(m.voices, voice{
		start: first,
		end:   first + m.durationToFrames(t.Duration),
		tone:  t,
	})
}

// Active returns the number of voices not yet fully rendered.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Fill renders len(out) mono frames and advances the clock.
func (m *Mixer) Fill(out []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rate := float64(m.rate)
	for i := range out {
		frame := m.pos + uint64(i)
		var acc float64
		for _, v := range m.voices {
			if frame >= v.start && frame < v.end {
				acc += v.tone.Sample(float64(frame-v.start) / rate)
			}
		}
		switch {
		case acc > 1:
			acc = 1
		case acc < -1:
			acc = -1
		}
		out[i] = float32(acc)
	}
	m.pos += uint64(len(out))

	live := m.voices[:0]
	for _, v := range m.voices {
		if v.end > m.pos {
			live = append(live, v)
		}
	}
	m.voices = live
}

// FillS16LE renders len(out)/2 frames as signed 16-bit little-endian PCM.
// Only the device callback calls it; the scratch buffer is not shared.
func (m *Mixer) FillS16LE(out []byte) {
	frames := len(out) / 2
	if cap(m.scratch) < frames {
		m.scratch = make([]float32, frames)
	}
	buf := m.scratch[:frames]
	m.Fill(buf)
	for i, v := range buf {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
}
