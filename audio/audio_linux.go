//go:build linux

package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseOutput struct {
	*Mixer
	client *pulse.Client
	stream *pulse.PlaybackStream

	mu        sync.Mutex
	suspended bool
	closed    bool
}

// NewOutput opens a mono PulseAudio playback stream fed by a Mixer.
func NewOutput() (Output, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("%w: pulse: %v", ErrDeviceUnavailable, err)
	}

	m := NewMixer(SampleRate)
	reader := pulse.Float32Reader(func(buf []float32) (int, error) {
		m.Fill(buf)
		return len(buf), nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: pulse playback: %v", ErrDeviceUnavailable, err)
	}
	stream.Start()

	return &pulseOutput{Mixer: m, client: c, stream: stream}, nil
}

func (o *pulseOutput) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("%w: output closed", ErrDeviceUnavailable)
	}
	if o.suspended {
		o.stream.Start()
		o.suspended = false
	}
	return nil
}

func (o *pulseOutput) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.suspended {
		return nil
	}
	o.stream.Stop()
	o.suspended = true
	return nil
}

func (o *pulseOutput) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

func (o *pulseOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.stream.Stop()
	o.stream.Close()
	o.client.Close()
}
