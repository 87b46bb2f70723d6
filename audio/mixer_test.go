package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"safewatch/severity"
	"safewatch/synth"
)

func TestMixerClockAdvancesWithFill(t *testing.T) {
	m := NewMixer(8000)
	if m.Now() != 0 {
		t.Fatalf("Now = %v, want 0", m.Now())
	}
	m.Fill(make([]float32, 4000))
	if got := m.Now(); got != 500*time.Millisecond {
		t.Errorf("Now = %v, want 500ms", got)
	}
}

func TestMixerRendersScheduledTone(t *testing.T) {
	m := NewMixer(8000)
	tone := synth.Beep{}.Plan(severity.Low, 1)[0]
	m.Schedule(100*time.Millisecond, tone)

	buf := make([]float32, 800) // first 100ms: silence
	m.Fill(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d = %v before tone start", i, v)
		}
	}

	m.Fill(buf)
	var nonzero int
	for _, v := range buf {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero == 0 {
		t.Fatal("expected tone samples after start")
	}
}

func TestMixerDropsFinishedVoices(t *testing.T) {
	m := NewMixer(8000)
	tone := synth.Beep{}.Plan(severity.Critical, 1)[0]
	m.Schedule(0, tone)
	if m.Active() != 1 {
		t.Fatalf("Active = %d, want 1", m.Active())
	}
	m.Fill(make([]float32, 8000))
	if m.Active() != 0 {
		t.Errorf("Active = %d after tone end, want 0", m.Active())
	}
}

func TestMixerLateToneStartsNow(t *testing.T) {
	m := NewMixer(8000)
	m.Fill(make([]float32, 8000))
	m.Schedule(0, synth.Beep{}.Plan(severity.Low, 1)[0])

	buf := make([]float32, 80)
	m.Fill(buf)
	var nonzero bool
	for _, v := range buf {
		nonzero = nonzero || v != 0
	}
	if !nonzero {
		t.Error("late tone should start at the current position")
	}
}

func TestMixerIgnoresSilentTones(t *testing.T) {
	m := NewMixer(8000)
	m.Schedule(0, synth.Siren{}.Plan(severity.High, 0)[0])
	if m.Active() != 0 {
		t.Errorf("zero-gain tone was queued")
	}
}

func TestMixerFillS16LE(t *testing.T) {
	m := NewMixer(8000)
	m.Schedule(0, synth.Pulse{}.Plan(severity.Critical, 1)[0])
	out := make([]byte, 2*400)
	m.FillS16LE(out)
	if got := m.Now(); got != 50*time.Millisecond {
		t.Errorf("Now = %v, want 50ms", got)
	}
	var peak int16
	for i := 0; i < len(out); i += 2 {
		peak = max(peak, int16(binary.LittleEndian.Uint16(out[i:])))
	}
	if peak == 0 {
		t.Error("expected non-zero PCM")
	}
}

func TestRecorderClockPausesWhileSuspended(t *testing.T) {
	r := NewRecorder()
	r.Advance(time.Second)
	r.Suspend()
	r.Advance(time.Second)
	if r.Now() != time.Second {
		t.Errorf("Now = %v, want 1s", r.Now())
	}
	if err := r.Resume(); err != nil {
		t.Fatal(err)
	}
	r.Advance(time.Second)
	if r.Now() != 2*time.Second {
		t.Errorf("Now = %v, want 2s", r.Now())
	}
}
