package doctor

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"safewatch/shutdown"
)

// guardTerminal restores stdin's terminal state and exits if the run is
// interrupted mid-prompt. The returned func disarms it.
func guardTerminal() (release func()) {
	fd := int(os.Stdin.Fd())
	var saved *term.State
	if term.IsTerminal(fd) {
		saved, _ = term.GetState(fd)
	}

	ctx, stop := shutdown.Context(context.Background())
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		select {
		case <-done:
			return
		default:
		}
		if saved != nil {
			term.Restore(fd, saved)
		}
		fmt.Fprintln(os.Stderr, "\nInterrupted")
		os.Exit(130)
	}()

	return func() {
		close(done)
		stop()
	}
}
