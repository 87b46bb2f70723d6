package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeFiresAtDeadline(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	c.AfterFunc(500*time.Millisecond, func() { fired = true })

	c.Advance(499 * time.Millisecond)
	if fired {
		t.Fatal("fired early")
	}
	c.Advance(time.Millisecond)
	if !fired {
		t.Fatal("did not fire at deadline")
	}
	if c.Pending() != 0 {
		t.Errorf("pending = %d, want 0", c.Pending())
	}
}

func TestFakeOrder(t *testing.T) {
	c := NewFake(epoch)
	var got []int
	c.AfterFunc(300*time.Millisecond, func() { got = append(got, 3) })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, 1) })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, 2) })

	c.Advance(time.Second)

	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFakeNowDuringCallback(t *testing.T) {
	c := NewFake(epoch)
	var at time.Time
	c.AfterFunc(250*time.Millisecond, func() { at = c.Now() })

	c.Advance(time.Second)

	if want := epoch.Add(250 * time.Millisecond); !at.Equal(want) {
		t.Errorf("callback saw %v, want %v", at, want)
	}
	if want := epoch.Add(time.Second); !c.Now().Equal(want) {
		t.Errorf("now = %v, want %v", c.Now(), want)
	}
}

func TestFakeStop(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	if !tm.Stop() {
		t.Fatal("Stop on pending timer returned false")
	}
	if tm.Stop() {
		t.Error("second Stop returned true")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeStopAfterFire(t *testing.T) {
	c := NewFake(epoch)
	tm := c.AfterFunc(time.Millisecond, func() {})
	c.Advance(time.Millisecond)
	if tm.Stop() {
		t.Error("Stop after fire returned true")
	}
}

func TestFakeCallbackSchedulesTimer(t *testing.T) {
	c := NewFake(epoch)
	count := 0
	c.AfterFunc(100*time.Millisecond, func() {
		count++
		c.AfterFunc(100*time.Millisecond, func() { count++ })
	})

	c.Advance(150 * time.Millisecond)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	c.Advance(50 * time.Millisecond)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestRealAfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer never fired")
	}
}
