package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"safewatch/audio"
	"safewatch/capture"
	"safewatch/config"
	"safewatch/oracle"
	"safewatch/settings"
	"safewatch/severity"
	"safewatch/synth"
)

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg *config.Config, analyzer oracle.Analyzer) int {
	release := guardTerminal()
	defer release()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	d := &doctor{
		out:         os.Stdout,
		in:          bufio.NewReader(os.Stdin),
		interactive: interactive,
		cfg:         cfg,
		open:        audio.NewOutput,
		analyzer:    analyzer,
		settle:      600 * time.Millisecond,
	}
	return d.run()
}

type doctor struct {
	out         io.Writer
	in          *bufio.Reader
	interactive bool
	cfg         *config.Config
	open        audio.Opener
	analyzer    oracle.Analyzer
	settle      time.Duration
}

const totalChecks = 4

func (d *doctor) run() int {
	fmt.Fprintln(d.out, "safewatch doctor - system diagnostics")
	fmt.Fprintln(d.out, "=====================================")

	allPass := true
	for _, check := range []func() bool{d.checkSettings, d.checkAudio, d.checkCapture, d.checkOracle} {
		if !check() {
			allPass = false
		}
	}

	fmt.Fprintln(d.out)
	if allPass {
		fmt.Fprintln(d.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(d.out, "Some checks failed. See details above.")
	return 1
}

func (d *doctor) header(n int, title string) {
	fmt.Fprintln(d.out)
	fmt.Fprintf(d.out, "[%d/%d] %s\n", n, totalChecks, title)
}

func (d *doctor) checkSettings() bool {
	d.header(1, "Settings store")

	store := settings.NewFileStore(d.cfg.Settings.Path)
	v, ok, err := store.Load()
	if err != nil {
		fmt.Fprintf(d.out, "  FAIL: %s: %v\n", store.Path(), err)
		return false
	}
	if !ok {
		fmt.Fprintf(d.out, "  PASS: no settings at %s yet, defaults apply\n", store.Path())
		return true
	}
	fmt.Fprintf(d.out, "  PASS: %s (waveform=%s volume=%.2f muted=%v)\n", store.Path(), v.Waveform, v.Volume, v.Muted)
	return true
}

func (d *doctor) checkAudio() bool {
	d.header(2, "Audio output")

	out, err := d.open()
	if err != nil {
		fmt.Fprintf(d.out, "  FAIL: cannot open output: %v\n", err)
		return false
	}
	defer out.Close()

	start := out.Now()
	tones := synth.Schedule(out, synth.Beep{}, severity.Medium, settings.DefaultVolume, start+20*time.Millisecond)
	time.Sleep(d.settle)

	if out.Now() <= start {
		fmt.Fprintln(d.out, "  FAIL: playback clock is not advancing")
		return false
	}
	fmt.Fprintf(d.out, "  PASS: output running, %d test tones scheduled\n", len(tones))

	if !d.interactive {
		return true
	}
	fmt.Fprint(d.out, "Did you hear two short beeps? [y/n]: ")
	confirm, _ := d.in.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm != "y" && confirm != "yes" {
		fmt.Fprintln(d.out, "  FAIL: playback not confirmed")
		return false
	}
	fmt.Fprintln(d.out, "  PASS: playback verified by user")
	return true
}

func (d *doctor) source() (capture.Source, error) {
	if d.cfg.Capture.Dir == "" {
		return capture.NewSynthetic(), nil
	}
	return capture.NewDir(d.cfg.Capture.Dir)
}

func (d *doctor) checkCapture() bool {
	d.header(3, "Capture source")

	src, err := d.source()
	if err != nil {
		fmt.Fprintf(d.out, "  FAIL: %v\n", err)
		return false
	}
	frame, err := src.Next(context.Background())
	if err != nil {
		fmt.Fprintf(d.out, "  FAIL: %s: %v\n", src.Name(), err)
		return false
	}
	fmt.Fprintf(d.out, "  PASS: %s yielded a %.1f KB frame\n", src.Name(), float64(len(frame))/1024)
	return true
}

func (d *doctor) checkOracle() bool {
	d.header(4, "Vision oracle")

	if d.cfg.Oracle.Fake {
		fmt.Fprintln(d.out, "  SKIP: running with the fake oracle")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	v, err := d.analyzer.Analyze(ctx, capture.SyntheticFrame())
	if err != nil {
		fmt.Fprintf(d.out, "  FAIL: %s: %v\n", d.analyzer.Name(), err)
		return false
	}
	fmt.Fprintf(d.out, "  PASS: %s answered %q in %dms\n", d.analyzer.Name(), v.Severity, time.Since(start).Milliseconds())
	return true
}
