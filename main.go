package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"safewatch/alert"
	"safewatch/api"
	"safewatch/audio"
	"safewatch/clock"
	"safewatch/config"
	"safewatch/doctor"
	"safewatch/encoder"
	"safewatch/log"
	"safewatch/settings"
	"safewatch/severity"
	"safewatch/shutdown"
	"safewatch/synth"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	sourceFlag := flag.String("source", "", "directory of frames to cycle through (default: synthetic frame)")
	intervalFlag := flag.Duration("interval", 0, "capture interval (e.g., 5s)")
	headlessFlag := flag.Bool("headless", false, "print alerts to stdout instead of running the TUI")
	fakeFlag := flag.Bool("fake-oracle", false, "use a scripted oracle instead of the network")
	renderFlag := flag.String("render", "", "render one alert to a FLAC file and exit")
	severityFlag := flag.String("severity", "high", "severity for -render")
	waveformFlag := flag.String("waveform", "", "waveform for -render (siren, beep, pulse; default: saved setting)")
	volumeFlag := flag.Float64("volume", settings.DefaultVolume, "master volume for -render")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("safewatch %s\n", version)
		return 0
	}

	if *renderFlag != "" {
		if err := renderAlert(*renderFlag, *severityFlag, *waveformFlag, *volumeFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("wrote %s\n", *renderFlag)
		return 0
	}

	// .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(func(c *config.Config) {
		if *sourceFlag != "" {
			c.Capture.Dir = *sourceFlag
		}
		if *intervalFlag != 0 {
			c.Capture.Interval = *intervalFlag
		}
		if *fakeFlag {
			c.Oracle.Fake = true
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	analyzer := newAnalyzer(cfg)

	if *doctorFlag {
		return doctor.Run(cfg, analyzer)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open logs: %v\n", err)
	}
	defer log.Close()
	log.SetLevel(cfg.Logging.Level)

	src, err := newSource(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	headless := *headlessFlag || !term.IsTerminal(int(os.Stdout.Fd()))
	var sink alert.Sink = tuiSink{}
	if headless {
		sink = newConsoleSink(os.Stdout)
	}

	a, err := newApp(appDeps{
		cfg:      cfg,
		analyzer: analyzer,
		source:   src,
		store:    settings.NewFileStore(cfg.Settings.Path),
		clock:    clock.Real(),
		sink:     sink,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if cfg.API.Addr != "" {
		srv := startAPI(cfg, a)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warnf("api shutdown: %v", err)
			}
		}()
	}

	if headless {
		return runHeadless(ctx, a, cfg)
	}
	return runTUI(ctx, a, cfg)
}

func runHeadless(ctx context.Context, a *app, cfg *config.Config) int {
	if err := a.session.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("monitoring %s with %s every %v (ctrl+c to stop)\n",
		a.source.Name(), a.gate.Name(), cfg.Capture.Interval)
	<-ctx.Done()
	a.session.Stop()
	fmt.Printf("stopped after %d frames, %d events\n", a.session.Frames(), a.events.Len())
	return 0
}

func runTUI(ctx context.Context, a *app, cfg *config.Config) int {
	p := tea.NewProgram(newTUIModel(ctx, a, cfg), tea.WithAltScreen())
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()
	defer func() {
		tuiMu.Lock()
		tuiProgram = nil
		tuiMu.Unlock()
	}()

	// Launching the monitor is the user's gesture.
	if err := a.session.Start(ctx); err != nil {
		log.Warnf("starting session: %v", err)
	}

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func startAPI(cfg *config.Config, a *app) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	h := api.NewHandler(a.orch, a.settings, a.engine, a.session)
	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.NewRouter(h, cfg.API.RateLimit),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("api listening on %s", cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("api server: %v", err)
		}
	}()
	return srv
}

// renderAlert writes the tones one alert would play to a FLAC file.
func renderAlert(path, level, waveform string, volume float64) error {
	lvl, err := severity.Parse(level)
	if err != nil {
		return err
	}
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1")
	}
	kind := settings.DefaultWaveform
	if waveform != "" {
		if kind, err = synth.ParseKind(waveform); err != nil {
			return err
		}
	} else if p, err := settings.DefaultPath(); err == nil {
		if s, err := settings.Load(settings.NewFileStore(p)); err == nil {
			kind = s.Waveform()
		}
	}
	if !lvl.IsAlerting() {
		return fmt.Errorf("%s does not sound an alert", lvl)
	}
	tones := synth.New(kind).Plan(lvl, volume)
	samples := synth.ToInt16(synth.Render(tones, audio.SampleRate))
	return encoder.WriteFile(path, samples, audio.SampleRate)
}
