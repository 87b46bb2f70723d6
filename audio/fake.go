package audio

import (
	"fmt"
	"sync"
	"time"

	"safewatch/synth"
)

type Scheduled struct {
	Start time.Duration
	Tone  synth.Tone
}

// Recorder is a record-only Output with a manual clock.
type Recorder struct {
	mu        sync.Mutex
	now       time.Duration
	suspended bool
	closed    bool
	resumes   int
	scheduled []Scheduled

	// ResumeErr, when set, is returned by Resume.
	ResumeErr error
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Schedule(start time.Duration, t synth.Tone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, Scheduled{Start: start, Tone: t})
}

func (r *Recorder) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

func (r *Recorder) Advance(d time.Duration) {
	r.mu.Lock()
	if !r.suspended {
		r.now += d
	}
	r.mu.Unlock()
}

func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumes++
	if r.ResumeErr != nil {
		return r.ResumeErr
	}
	r.suspended = false
	return nil
}

func (r *Recorder) Suspend() error {
	r.mu.Lock()
	r.suspended = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Suspended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended
}

func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recorder) Resumes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resumes
}

// Scheduled returns a copy of everything scheduled so far.
func (r *Recorder) Scheduled() []Scheduled {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Scheduled, len(r.scheduled))
	copy(out, r.scheduled)
	return out
}

// FakeBackend hands out Recorders and can simulate a platform that
// refuses audio.
type FakeBackend struct {
	mu    sync.Mutex
	fail  bool
	opens int
	last  *Recorder
}

func (b *FakeBackend) SetFail(fail bool) {
	b.mu.Lock()
	b.fail = fail
	b.mu.Unlock()
}

func (b *FakeBackend) Open() (Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	if b.fail {
		return nil, fmt.Errorf("%w: fake backend refused", ErrDeviceUnavailable)
	}
	b.last = NewRecorder()
	return b.last, nil
}

func (b *FakeBackend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// Last returns the most recently opened Recorder, or nil.
func (b *FakeBackend) Last() *Recorder {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
