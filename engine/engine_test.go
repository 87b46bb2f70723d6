package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"safewatch/audio"
	"safewatch/settings"
	"safewatch/severity"
	"safewatch/synth"
)

func newEngine(t *testing.T) (*Engine, *settings.Settings, *audio.FakeBackend) {
	t.Helper()
	s, err := settings.Load(&settings.MemStore{})
	require.NoError(t, err)
	b := &audio.FakeBackend{}
	e := New(s, b.Open)
	t.Cleanup(e.Close)
	return e, s, b
}

func TestNoDeviceBeforeGesture(t *testing.T) {
	e, _, b := newEngine(t)

	assert.False(t, e.Play(severity.High, false))
	assert.Zero(t, b.Opens())
	assert.False(t, e.Ready())
}

func TestGestureOpensOnce(t *testing.T) {
	e, _, b := newEngine(t)

	require.NoError(t, e.Gesture())
	require.NoError(t, e.Gesture())
	assert.Equal(t, 1, b.Opens())
	assert.True(t, e.Ready())
}

func TestPlaySchedulesAheadOfClock(t *testing.T) {
	e, _, b := newEngine(t)
	require.NoError(t, e.Gesture())
	rec := b.Last()
	rec.Advance(time.Second)

	require.True(t, e.Play(severity.Critical, false))

	got := rec.Scheduled()
	want := synth.Siren{}.Plan(severity.Critical, settings.DefaultVolume)
	require.Len(t, got, len(want))
	for i, sc := range got {
		assert.Equal(t, time.Second+Lead+want[i].Offset, sc.Start)
		assert.Equal(t, want[i], sc.Tone)
	}
}

func TestPlayUsesSelectedWaveform(t *testing.T) {
	e, s, b := newEngine(t)
	require.NoError(t, e.Gesture())
	require.NoError(t, s.SetWaveform(synth.KindPulse))

	require.True(t, e.Play(severity.High, false))

	got := b.Last().Scheduled()
	require.Len(t, got, len(synth.Pulse{}.Plan(severity.High, 0.5)))
	assert.Equal(t, synth.Square, got[0].Tone.Wave)
}

func TestMutedSkipsUnlessForced(t *testing.T) {
	e, s, b := newEngine(t)
	require.NoError(t, e.Gesture())
	require.NoError(t, s.SetMuted(true))

	assert.False(t, e.Play(severity.Critical, false))
	assert.Empty(t, b.Last().Scheduled())

	assert.True(t, e.Play(severity.High, true))
	assert.NotEmpty(t, b.Last().Scheduled())
}

func TestSafeNeverPlaysUnforced(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s, _ := settings.Load(&settings.MemStore{})
		muted := rapid.Bool().Draw(t, "muted")
		_ = s.SetMuted(muted)
		b := &audio.FakeBackend{}
		e := New(s, b.Open)
		defer e.Close()
		_ = e.Gesture()

		if e.Play(severity.Safe, false) {
			t.Fatal("safe played without force")
		}
		if n := len(b.Last().Scheduled()); n != 0 {
			t.Fatalf("scheduled %d tones for safe", n)
		}
	})
}

func TestForcedSafeUsesLowRow(t *testing.T) {
	e, _, b := newEngine(t)

	require.True(t, e.Play(severity.Safe, true))
	got := b.Last().Scheduled()
	want := synth.Siren{}.Plan(severity.Low, settings.DefaultVolume)
	require.Len(t, got, len(want))
	assert.Equal(t, want[0], got[0].Tone)
}

func TestForcedPlayCountsAsGesture(t *testing.T) {
	e, _, b := newEngine(t)

	require.True(t, e.Play(severity.High, true))
	assert.Equal(t, 1, b.Opens())
	assert.True(t, e.Play(severity.Medium, false))
}

func TestDeviceUnavailableDisarmsUntilGesture(t *testing.T) {
	e, _, b := newEngine(t)
	b.SetFail(true)

	err := e.Gesture()
	require.ErrorIs(t, err, audio.ErrDeviceUnavailable)
	require.ErrorIs(t, e.LastError(), audio.ErrDeviceUnavailable)

	b.SetFail(false)
	assert.False(t, e.Play(severity.Critical, false))
	assert.Equal(t, 1, b.Opens(), "unforced play must not retry the device")

	require.NoError(t, e.Gesture())
	assert.True(t, e.Play(severity.Critical, false))
}

func TestOpenerErrorIsWrapped(t *testing.T) {
	s, err := settings.Load(&settings.MemStore{})
	require.NoError(t, err)
	e := New(s, func() (audio.Output, error) { return nil, errors.New("no sink") })
	defer e.Close()

	err = e.Gesture()
	require.ErrorIs(t, err, audio.ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "no sink")
}

func TestSuspendedDeviceResumesOnGesture(t *testing.T) {
	e, _, b := newEngine(t)
	require.NoError(t, e.Gesture())
	rec := b.Last()

	require.NoError(t, e.Suspend())
	assert.False(t, e.Ready())
	assert.False(t, e.Play(severity.High, false))

	require.NoError(t, e.Gesture())
	assert.True(t, e.Ready())
	assert.Equal(t, 1, rec.Resumes())
	assert.Equal(t, 1, b.Opens())
}

func TestResumeFailureReported(t *testing.T) {
	e, _, b := newEngine(t)
	require.NoError(t, e.Gesture())
	rec := b.Last()
	require.NoError(t, e.Suspend())
	rec.ResumeErr = errors.New("device busy")

	err := e.Gesture()
	require.ErrorIs(t, err, audio.ErrDeviceUnavailable)
	assert.False(t, e.Ready())
}

func TestCloseReleasesDevice(t *testing.T) {
	e, _, b := newEngine(t)
	require.NoError(t, e.Gesture())

	e.Close()
	e.Close()

	assert.True(t, b.Last().Closed())
	assert.False(t, e.Ready())
	assert.False(t, e.Play(severity.Critical, true))
}

type fixedGen struct{}

func (fixedGen) Kind() synth.Kind { return synth.KindBeep }
func (fixedGen) Plan(severity.Level, float64) []synth.Tone {
	return []synth.Tone{{Freq: 100, Duration: time.Millisecond, Gain: 1}}
}

func TestGeneratorOverride(t *testing.T) {
	s, err := settings.Load(&settings.MemStore{})
	require.NoError(t, err)
	require.NoError(t, s.SetWaveform(synth.KindBeep))
	b := &audio.FakeBackend{}
	e := New(s, b.Open, fixedGen{})
	defer e.Close()

	require.True(t, e.Play(severity.Low, true))
	got := b.Last().Scheduled()
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Tone.Freq)
}

func TestReleaseAllowsReopen(t *testing.T) {
	e, _, b := newEngine(t)
	require.NoError(t, e.Gesture())
	first := b.Last()

	e.Release()
	assert.True(t, first.Closed())
	assert.False(t, e.Play(severity.High, false))

	require.NoError(t, e.Gesture())
	assert.Equal(t, 2, b.Opens())
	assert.True(t, e.Ready())
}
