package shutdown

import (
	"context"
	"testing"
)

func TestStopCancels(t *testing.T) {
	ctx, stop := Context(context.Background())
	if ctx.Err() != nil {
		t.Fatal("context cancelled before any signal")
	}
	stop()
	<-ctx.Done()
}

func TestParentCancelPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := Context(parent)
	defer stop()
	cancel()
	<-ctx.Done()
}
