// Package capture produces the frames fed to the analysis gate.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"safewatch/log"
)

const DefaultInterval = 5 * time.Second

type Source interface {
	Name() string
	Next(ctx context.Context) ([]byte, error)
}

// Dir cycles through the image files of a directory in name order. The
// listing is refreshed each time the cycle wraps.
type Dir struct {
	path string

	mu    sync.Mutex
	files []string
	pos   int
}

func NewDir(path string) (*Dir, error) {
	d := &Dir{path: path}
	if err := d.scan(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dir) Name() string { return "dir:" + d.path }

func (d *Dir) scan() error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("reading capture dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(d.path, e.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no .jpg, .jpeg or .png files in %s", d.path)
	}
	sort.Strings(files)
	d.files = files
	d.pos = 0
	return nil
}

func (d *Dir) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.files) {
		if err := d.scan(); err != nil {
			return nil, err
		}
	}
	path := d.files[d.pos]
	d.pos++
	return os.ReadFile(path)
}

// Static returns the same payload for every frame.
type Static struct {
	data []byte
}

func NewStatic(data []byte) *Static { return &Static{data: data} }

// NewSynthetic returns a Static holding a generated test card.
func NewSynthetic() *Static { return NewStatic(SyntheticFrame()) }

func (s *Static) Name() string { return "static" }

func (s *Static) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.data, nil
}

// SyntheticFrame renders a small striped PNG.
func SyntheticFrame() []byte {
	const w, h = 64, 48
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stripes := []color.RGBA{
		{0xf2, 0xc1, 0x1d, 0xff},
		{0x20, 0x20, 0x20, 0xff},
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, stripes[((x+y)/8)%2])
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// Run hands a frame to fn immediately and then every interval until ctx is
// done. fn runs on its own goroutine so a slow consumer never delays the
// ticker; source errors are logged and the tick is skipped. Run returns
// after every fn it started has returned.
func Run(ctx context.Context, src Source, interval time.Duration, fn func(context.Context, []byte)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func() {
		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warnf("capture %s: %v", src.Name(), err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx, frame)
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
