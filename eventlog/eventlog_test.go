package eventlog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safewatch/severity"
)

var t0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func sample(i int, level severity.Level) Event {
	return Event{
		ID:        fmt.Sprintf("ev-%d", i),
		Timestamp: t0.Add(time.Duration(i) * time.Second),
		Severity:  level,
		Message:   fmt.Sprintf("message %d", i),
		Location:  "Zone A",
		Reasoning: []string{"Worker detected.", "No harness."},
	}
}

func TestAppendPreservesOrderAndFields(t *testing.T) {
	l := New()
	var want []Event
	for i, lvl := range []severity.Level{severity.Critical, severity.Safe, severity.Low, severity.Critical} {
		ev := sample(i, lvl)
		want = append(want, ev)
		l.Append(ev)
	}

	assert.Equal(t, want, l.Events())
	assert.Equal(t, 4, l.Len())
	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, want[3], last)
}

func TestEventsIsACopy(t *testing.T) {
	l := New()
	ev := sample(0, severity.High)
	l.Append(ev)
	ev.Reasoning[0] = "mutated after append"

	got := l.Events()
	got[0].Message = "mutated copy"

	again := l.Events()
	assert.Equal(t, "message 0", again[0].Message)
	assert.Equal(t, "Worker detected.", again[0].Reasoning[0])
}

func TestReadersCannotRewriteReasoning(t *testing.T) {
	l := New()
	l.Append(sample(0, severity.Critical))

	l.Events()[0].Reasoning[0] = "tampered"
	last, _ := l.Last()
	last.Reasoning[1] = "tampered"
	l.Filter(severity.Critical)[0].Reasoning[0] = "tampered"

	assert.Equal(t, []string{"Worker detected.", "No harness."}, l.Events()[0].Reasoning)
}

func TestNoDeduplication(t *testing.T) {
	l := New()
	ev := sample(1, severity.Medium)
	l.Append(ev)
	l.Append(ev)
	assert.Equal(t, 2, l.Len())
}

func TestResetAndEmpty(t *testing.T) {
	l := New()
	_, ok := l.Last()
	assert.False(t, ok)

	l.Append(sample(0, severity.Low))
	l.Reset()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Events())
}

func TestFilter(t *testing.T) {
	l := New()
	l.Append(sample(0, severity.Critical))
	l.Append(sample(1, severity.Safe))
	l.Append(sample(2, severity.Critical))

	got := l.Filter(severity.Critical)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-0", got[0].ID)
	assert.Equal(t, "ev-2", got[1].ID)
	assert.Empty(t, l.Filter(severity.Medium))
}

type failingStore struct{ calls int }

func (f *failingStore) Save(Event) error {
	f.calls++
	return errors.New("disk full")
}

func TestStoreFailureKeepsEvent(t *testing.T) {
	fs := &failingStore{}
	l := New(WithStore(fs))
	l.Append(sample(0, severity.High))

	assert.Equal(t, 1, fs.calls)
	assert.Equal(t, 1, l.Len())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	ev := sample(0, severity.Critical)
	ev.Message = `No harness, "again"`
	require.NoError(t, WriteCSV(&buf, []Event{ev, sample(1, severity.Safe)}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"timestamp", "severity", "location", "message", "reasoning"}, rows[0])
	assert.Equal(t, []string{
		"2026-03-01T09:30:00Z",
		"critical",
		"Zone A",
		`No harness, "again"`,
		"Worker detected. | No harness.",
	}, rows[1])
	assert.Equal(t, "safe", rows[2][1])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "timestamp,severity,location,message,reasoning\n", buf.String())
}

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	want := []Event{sample(0, severity.Critical), sample(1, severity.Safe), sample(2, severity.Low)}
	for _, ev := range want {
		require.NoError(t, s.Save(ev))
	}

	got, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, want[i].Severity, got[i].Severity)
		assert.Equal(t, want[i].Message, got[i].Message)
		assert.Equal(t, want[i].Location, got[i].Location)
		assert.Equal(t, want[i].Reasoning, got[i].Reasoning)
	}

	limited, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStoreKeepsDuplicates(t *testing.T) {
	s := setupTestStore(t)
	l := New(WithStore(s))
	ev := sample(0, severity.High)
	l.Append(ev)
	l.Append(ev)

	got, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, got[0].ID, got[1].ID)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	l := New(WithStore(s))
	l.Append(sample(7, severity.Medium))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.List(0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-7", got[0].ID)
}
