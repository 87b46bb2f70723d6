// Package encoder writes rendered alert tones as lossless FLAC.
package encoder

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type FlacEncoder struct {
	buf         bytes.Buffer
	enc         *flac.Encoder
	sampleRate  uint32
	totalFrames uint64
	mu          sync.Mutex
}

func NewFlac(sampleRate int) (*FlacEncoder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	e := &FlacEncoder{sampleRate: uint32(sampleRate)}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    e.sampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      0,
	}
	enc, err := flac.NewEncoder(&e.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	e.enc = enc
	return e, nil
}

// EncodeBlock writes one frame. Blocks longer than BlockSize are split.
func (e *FlacEncoder) EncodeBlock(block []int16) error {
	for len(block) > BlockSize {
		if err := e.encodeFrame(block[:BlockSize]); err != nil {
			return err
		}
		block = block[BlockSize:]
	}
	if len(block) == 0 {
		return nil
	}
	return e.encodeFrame(block)
}

func (e *FlacEncoder) encodeFrame(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	samples32 := make([]int32, len(block))
	for i, s := range block {
		samples32[i] = int32(s)
	}

	subframe := &frame.Subframe{
		SubHeader: frame.SubHeader{
			Pred: frame.PredVerbatim,
		},
		Samples:  samples32,
		NSamples: len(block),
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    e.sampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{subframe},
	}

	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *FlacEncoder) Close() error {
	return e.enc.Close()
}

func (e *FlacEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *FlacEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

// WriteFile encodes samples and writes the result to path.
func WriteFile(path string, samples []int16, sampleRate int) error {
	enc, err := NewFlac(sampleRate)
	if err != nil {
		return err
	}
	if err := enc.EncodeBlock(samples); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finishing flac stream: %w", err)
	}
	return os.WriteFile(path, enc.Bytes(), 0644)
}
