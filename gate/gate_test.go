package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"safewatch/oracle"
	"safewatch/severity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func fixed(g *Gate) {
	WithClock(func() time.Time { return t0 })(g)
	WithIDs(func() string { return "ev-1" })(g)
}

func TestSubmitCriticalScenario(t *testing.T) {
	f := oracle.NewFakeVerdict(oracle.Verdict{
		Severity:  severity.Critical,
		Message:   "No harness",
		Location:  "Zone A",
		Reasoning: "1. Worker detected. 2. No harness.",
	})
	g := New(f, fixed)

	ev, ok := g.Submit(context.Background(), []byte("frame"))
	require.True(t, ok)
	assert.Equal(t, "ev-1", ev.ID)
	assert.Equal(t, t0, ev.Timestamp)
	assert.Equal(t, severity.Critical, ev.Severity)
	assert.Equal(t, "No harness", ev.Message)
	assert.Equal(t, "Zone A", ev.Location)
	assert.Equal(t, []string{"Worker detected.", "No harness."}, ev.Reasoning)
	assert.False(t, g.InFlight())
}

func TestSubmitSafe(t *testing.T) {
	f := oracle.NewFakeVerdict(oracle.Verdict{Safe: true, Severity: severity.Safe, Location: "Dock", Reasoning: "All clear"})
	ev, ok := New(f).Submit(context.Background(), nil)
	require.True(t, ok)
	assert.Equal(t, severity.Safe, ev.Severity)
	assert.Equal(t, []string{"All clear"}, ev.Reasoning)
	assert.NotEmpty(t, ev.ID)
}

func TestSubmitFailureProducesNothing(t *testing.T) {
	for _, err := range []error{oracle.ErrUnavailable, oracle.ErrMalformedVerdict, errors.New("other")} {
		t.Run(err.Error(), func(t *testing.T) {
			g := New(oracle.NewFake(oracle.Reply{Err: err}))
			_, ok := g.Submit(context.Background(), nil)
			assert.False(t, ok)
			assert.False(t, g.InFlight(), "slot released after failure")
			assert.EqualValues(t, 1, g.Failed())
		})
	}
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }
func (panicky) Analyze(context.Context, []byte) (*oracle.Verdict, error) {
	panic("oracle exploded")
}

func TestSlotReleasedOnPanic(t *testing.T) {
	g := New(panicky{})
	func() {
		defer func() { recover() }()
		g.Submit(context.Background(), nil)
	}()
	assert.False(t, g.InFlight())
}

func TestSingleFlightDropsConcurrentSubmits(t *testing.T) {
	f := oracle.NewFakeVerdict(oracle.Verdict{Severity: severity.High, Message: "m", Reasoning: "r"})
	f.Block = make(chan struct{})
	g := New(f)

	done := make(chan bool)
	go func() {
		_, ok := g.Submit(context.Background(), nil)
		done <- ok
	}()
	require.Eventually(t, g.InFlight, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := g.Submit(context.Background(), nil)
			assert.False(t, ok)
		}()
	}
	wg.Wait()

	close(f.Block)
	assert.True(t, <-done)
	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, 1, f.MaxConcurrent())
	assert.EqualValues(t, 10, g.Dropped())
	assert.False(t, g.InFlight())
}

func TestSubmitCancelled(t *testing.T) {
	f := oracle.NewFakeVerdict(oracle.Verdict{Severity: severity.High})
	f.Block = make(chan struct{})
	g := New(f)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		_, ok := g.Submit(ctx, nil)
		done <- ok
	}()
	require.Eventually(t, g.InFlight, time.Second, time.Millisecond)
	cancel()
	assert.False(t, <-done)
	assert.False(t, g.InFlight())
}

func TestSequentialSubmitsEachCallOracle(t *testing.T) {
	f := oracle.NewFakeVerdict(oracle.Verdict{Severity: severity.Low, Message: "m", Reasoning: "r"})
	n := 0
	g := New(f, WithIDs(func() string { n++; return fmt.Sprintf("id-%d", n) }))
	for i := 1; i <= 3; i++ {
		ev, ok := g.Submit(context.Background(), nil)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("id-%d", i), ev.ID)
	}
	assert.Equal(t, 3, f.Calls())
}

func TestInvalidSeverityBecomesSafe(t *testing.T) {
	f := oracle.NewFakeVerdict(oracle.Verdict{Severity: "weird", Reasoning: "r"})
	ev, ok := New(f).Submit(context.Background(), nil)
	require.True(t, ok)
	assert.Equal(t, severity.Safe, ev.Severity)
}

func TestSplitReasoning(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"1. Worker detected. 2. No harness.", []string{"Worker detected.", "No harness."}},
		{"1) one 2) two 3) three", []string{"one", "two", "three"}},
		{"1. first\n2. second\n", []string{"first", "second"}},
		{"No numbered steps here.", []string{"No numbered steps here."}},
		{"  padded  ", []string{"padded"}},
		{"1. Measured 1.5m drop. 2. Edge unguarded.", []string{"Measured 1.5m drop.", "Edge unguarded."}},
		{"Worker on level 2. Harness missing.", []string{"Worker on level 2. Harness missing."}},
		{"Crane 3) idle", []string{"Crane 3) idle"}},
		{"1.", []string{"1."}},
		{"", []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SplitReasoning(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)
		})
	}
}
