package oracle

import (
	"context"
	"sync"

	"safewatch/severity"
)

// Reply is one scripted Fake answer.
type Reply struct {
	Verdict *Verdict
	Err     error
}

// Fake replays scripted replies in order, repeating the last one, or
// starting over when Loop is set. When Block is set every call waits for
// a value on it (or ctx) before answering.
type Fake struct {
	Block chan struct{}
	Loop  bool

	mu       sync.Mutex
	replies  []Reply
	calls    int
	inFlight int
	maxSeen  int
}

func NewFake(replies ...Reply) *Fake {
	return &Fake{replies: replies}
}

// NewFakeVerdict answers every call with v.
func NewFakeVerdict(v Verdict) *Fake {
	return NewFake(Reply{Verdict: &v})
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Analyze(ctx context.Context, _ []byte) (*Verdict, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return &Verdict{Safe: true, Severity: severity.Safe, Reasoning: "1. Nothing scripted."}, nil
	}
	if i >= len(f.replies) {
		if f.Loop {
			i %= len(f.replies)
		} else {
			i = len(f.replies) - 1
		}
	}
	r := f.replies[i]
	if r.Err != nil {
		return nil, r.Err
	}
	v := *r.Verdict
	return &v, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// MaxConcurrent is the highest number of overlapping Analyze calls seen.
func (f *Fake) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}
