package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"safewatch/synth"
)

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	s, err := Load(&MemStore{})
	require.NoError(t, err)
	require.Equal(t, Values{Waveform: synth.KindSiren, Volume: 0.5}, s.Get())
}

func TestSettersPersist(t *testing.T) {
	store := &MemStore{}
	s, err := Load(store)
	require.NoError(t, err)

	require.NoError(t, s.SetWaveform(synth.KindPulse))
	require.NoError(t, s.SetVolume(0.73))
	require.NoError(t, s.SetMuted(true))
	require.Equal(t, 3, store.Saves())

	got, ok, _ := store.Load()
	require.True(t, ok)
	require.Equal(t, Values{Waveform: synth.KindPulse, Volume: 0.75, Muted: true}, got)
}

func TestSetVolumeRejectsOutOfRange(t *testing.T) {
	s, _ := Load(&MemStore{})
	for _, v := range []float64{-0.1, 1.01} {
		err := s.SetVolume(v)
		require.ErrorIs(t, err, ErrInvalid)
	}
	require.Equal(t, DefaultVolume, s.Volume())
}

func TestSetWaveformRejectsUnknown(t *testing.T) {
	s, _ := Load(&MemStore{})
	require.ErrorIs(t, s.SetWaveform("kazoo"), ErrInvalid)
	require.Equal(t, synth.KindSiren, s.Waveform())
}

func TestStepVolumeClamps(t *testing.T) {
	s, _ := Load(&MemStore{})
	for i := 0; i < 20; i++ {
		s.StepVolume(1)
	}
	require.Equal(t, 1.0, s.Volume())
	s.StepVolume(-3)
	require.Equal(t, 0.85, s.Volume())
	for i := 0; i < 30; i++ {
		s.StepVolume(-1)
	}
	require.Equal(t, 0.0, s.Volume())
}

func TestToggleAndCycle(t *testing.T) {
	s, _ := Load(&MemStore{})
	require.True(t, s.ToggleMuted().Muted)
	require.False(t, s.ToggleMuted().Muted)
	require.Equal(t, synth.KindBeep, s.CycleWaveform().Waveform)
}

func TestOnChange(t *testing.T) {
	s, _ := Load(&MemStore{})
	var seen []Values
	s.OnChange(func(v Values) { seen = append(seen, v) })
	s.SetMuted(true)
	require.Len(t, seen, 1)
	require.True(t, seen[0].Muted)
}

func TestSaveFailureKeepsValue(t *testing.T) {
	store := &MemStore{Err: errors.New("disk full")}
	s, _ := Load(store)
	err := s.SetMuted(true)
	require.Error(t, err)
	require.True(t, s.Muted())
	require.Error(t, s.SaveErr())
}

func TestOnChangeRunsWhenSaveFails(t *testing.T) {
	s, _ := Load(&MemStore{Err: errors.New("disk full")})
	var seen []Values
	s.OnChange(func(v Values) { seen = append(seen, v) })
	require.Error(t, s.SetMuted(true))
	require.Len(t, seen, 1)
	require.True(t, seen[0].Muted)
}

func TestLoadSanitizesStoredValues(t *testing.T) {
	store := &MemStore{}
	store.Save(Values{Waveform: "organ", Volume: 7, Muted: true})
	s, err := Load(store)
	require.NoError(t, err)
	require.Equal(t, Values{Waveform: synth.KindSiren, Volume: 0.5, Muted: true}, s.Get())
}

func TestFileStoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	store := NewFileStore(path)

	_, ok, err := store.Load()
	require.NoError(t, err)
	require.False(t, ok)

	s, err := Load(store)
	require.NoError(t, err)
	require.NoError(t, s.SetWaveform(synth.KindBeep))
	require.NoError(t, s.SetVolume(0.3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "waveform: beep")
	require.Contains(t, string(data), "volume: 0.3")

	reloaded, err := Load(NewFileStore(path))
	require.NoError(t, err)
	require.Equal(t, Values{Waveform: synth.KindBeep, Volume: 0.3}, reloaded.Get())
}

func TestFileStorePartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("muted: true\n"), 0644))

	s, err := Load(NewFileStore(path))
	require.NoError(t, err)
	require.Equal(t, Values{Waveform: synth.KindSiren, Volume: 0.5, Muted: true}, s.Get())
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volume: [oops"), 0644))

	s, err := Load(NewFileStore(path))
	require.ErrorIs(t, err, ErrInvalid)
	require.Equal(t, Defaults(), s.Get())
}
