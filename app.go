package main

import (
	"context"
	"fmt"

	"safewatch/alert"
	"safewatch/audio"
	"safewatch/capture"
	"safewatch/clock"
	"safewatch/config"
	"safewatch/engine"
	"safewatch/eventlog"
	"safewatch/gate"
	"safewatch/log"
	"safewatch/oracle"
	"safewatch/session"
	"safewatch/settings"
	"safewatch/severity"
)

// app is everything one process wires together.
type app struct {
	settings *settings.Settings
	engine   *engine.Engine
	gate     *gate.Gate
	events   *eventlog.Log
	orch     *alert.Orchestrator
	session  *session.Session
	source   capture.Source
	store    *eventlog.SQLiteStore
}

type appDeps struct {
	cfg      *config.Config
	analyzer oracle.Analyzer
	source   capture.Source
	store    settings.Store
	open     audio.Opener
	clock    clock.Clock
	sink     alert.Sink
}

func newApp(d appDeps) (*app, error) {
	s, err := settings.Load(d.store)
	if err != nil {
		// Load still returns usable defaults.
		log.Warnf("using default settings: %v", err)
		fmt.Printf("Warning: %v (using defaults)\n", err)
	}
	s.OnChange(func(v settings.Values) {
		log.Infof("settings: waveform=%s volume=%.2f muted=%t", v.Waveform, v.Volume, v.Muted)
	})

	a := &app{settings: s, source: d.source}

	var opts []eventlog.Option
	if d.cfg.DB.Path != "" {
		st, err := eventlog.NewSQLiteStore(d.cfg.DB.Path)
		if err != nil {
			return nil, fmt.Errorf("opening event database: %w", err)
		}
		a.store = st
		opts = append(opts, eventlog.WithStore(st))
	}
	a.events = eventlog.New(opts...)

	a.engine = engine.New(s, d.open)
	a.gate = gate.New(d.analyzer)

	var orchOpts []alert.Option
	if d.sink != nil {
		orchOpts = append(orchOpts, alert.WithSink(d.sink))
	}
	a.orch = alert.New(d.clock, a.engine, a.events, orchOpts...)

	a.session = session.New(session.Config{
		Source:       d.source,
		Interval:     d.cfg.Capture.Interval,
		Gate:         a.gate,
		Orchestrator: a.orch,
		Engine:       a.engine,
	})
	return a, nil
}

// toggle starts a stopped session and stops a running one.
func (a *app) toggle(ctx context.Context) (running bool, err error) {
	if a.session.Running() {
		a.session.Stop()
		return false, nil
	}
	if err := a.session.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (a *app) preview() bool {
	return a.engine.Play(severity.High, true)
}

func (a *app) close() {
	a.session.Stop()
	a.engine.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warnf("closing event database: %v", err)
		}
	}
}

// newSource picks the capture source: a frame directory when configured,
// otherwise a synthetic frame.
func newSource(cfg *config.Config) (capture.Source, error) {
	if cfg.Capture.Dir == "" {
		return capture.NewSynthetic(), nil
	}
	return capture.NewDir(cfg.Capture.Dir)
}

// demoReplies walks through every level so the alert path can be seen
// without an API key.
func demoReplies() []oracle.Reply {
	mk := func(level severity.Level, msg, loc string) oracle.Reply {
		return oracle.Reply{Verdict: &oracle.Verdict{
			Safe:      level == severity.Safe,
			Severity:  level,
			Message:   msg,
			Location:  loc,
			Reasoning: "1. Demo frame. 2. Scripted verdict.",
		}}
	}
	return []oracle.Reply{
		mk(severity.Safe, "", ""),
		mk(severity.Low, "Cable across walkway", "Aisle 3"),
		mk(severity.Safe, "", ""),
		mk(severity.Medium, "Worker without safety glasses", "Bench 2"),
		mk(severity.High, "Forklift operating near pedestrians", "Loading dock"),
		mk(severity.Safe, "", ""),
		mk(severity.Critical, "Worker at height without harness", "Scaffold B"),
	}
}

func newAnalyzer(cfg *config.Config) oracle.Analyzer {
	if cfg.Oracle.Fake {
		f := oracle.NewFake(demoReplies()...)
		f.Loop = true
		return f
	}
	return oracle.NewGemini(cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.URL)
}
