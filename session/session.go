// Package session runs one monitoring session: capture ticks feed the
// gate, completed events go to the orchestrator.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"safewatch/alert"
	"safewatch/capture"
	"safewatch/engine"
	"safewatch/gate"
	"safewatch/log"
)

var ErrRunning = errors.New("session already running")

type Config struct {
	Source       capture.Source
	Interval     time.Duration
	Gate         *gate.Gate
	Orchestrator *alert.Orchestrator
	Engine       *engine.Engine
}

type Session struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	frames int64
}

func New(cfg Config) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = capture.DefaultInterval
	}
	return &Session{cfg: cfg}
}

// Start begins capturing. Starting a session is a user action, so it also
// brings the audio device up; audio failure is logged and monitoring runs
// without sound. A new session starts with an empty event log.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrRunning
	}

	if s.cfg.Engine != nil {
		if err := s.cfg.Engine.Gesture(); err != nil {
			log.Warnf("monitoring without audio: %v", err)
		}
	}
	s.cfg.Orchestrator.Events().Reset()

	waveform := ""
	if s.cfg.Engine != nil {
		waveform = string(s.cfg.Engine.Settings().Waveform())
	}
	log.SessionStart(s.cfg.Gate.Name(), s.cfg.Source.Name(), waveform)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.frames = 0

	go func() {
		defer close(done)
		capture.Run(ctx, s.cfg.Source, s.cfg.Interval, s.analyze)
	}()
	return nil
}

func (s *Session) analyze(ctx context.Context, frame []byte) {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()

	ev, ok := s.cfg.Gate.Submit(ctx, frame)
	if !ok || ctx.Err() != nil {
		return
	}
	s.cfg.Orchestrator.Handle(ev)
}

// Stop cancels capture, waits for in-flight work, clears pending alert
// timers and releases the audio device. It is a no-op when not running.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.cfg.Orchestrator.Reset()
	if s.cfg.Engine != nil {
		s.cfg.Engine.Release()
	}
	log.SessionEnd(s.cfg.Orchestrator.Events().Len())
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Frames is the number of frames captured in the current or last session.
func (s *Session) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// InFlight reports whether an analysis is outstanding.
func (s *Session) InFlight() bool { return s.cfg.Gate.InFlight() }
