//go:build !linux

package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoOutput struct {
	*Mixer
	ctx *malgo.AllocatedContext

	mu        sync.Mutex
	device    *malgo.Device
	suspended bool
	closed    bool
}

// NewOutput opens a mono miniaudio playback device fed by a Mixer.
func NewOutput() (Output, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: malgo: %v", ErrDeviceUnavailable, err)
	}
	o := &malgoOutput{Mixer: NewMixer(SampleRate), ctx: ctx}
	if err := o.initDevice(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: malgo device: %v", ErrDeviceUnavailable, err)
	}
	if err := o.device.Start(); err != nil {
		o.device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: malgo start: %v", ErrDeviceUnavailable, err)
	}
	return o, nil
}

func (o *malgoOutput) initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			o.FillS16LE(pOutput[:frameCount*2])
		},
	}

	dev, err := malgo.InitDevice(o.ctx.Context, config, callbacks)
	if err != nil {
		return err
	}
	o.device = dev
	return nil
}

func (o *malgoOutput) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("%w: output closed", ErrDeviceUnavailable)
	}
	if !o.suspended {
		return nil
	}
	if err := o.device.Start(); err != nil {
		// Recreate the device (handles macOS sleep/wake)
		o.device.Uninit()
		if err := o.initDevice(); err != nil {
			return fmt.Errorf("%w: malgo reinit: %v", ErrDeviceUnavailable, err)
		}
		if err := o.device.Start(); err != nil {
			return fmt.Errorf("%w: malgo start: %v", ErrDeviceUnavailable, err)
		}
	}
	o.suspended = false
	return nil
}

func (o *malgoOutput) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.suspended {
		return nil
	}
	if err := o.device.Stop(); err != nil {
		return fmt.Errorf("malgo stop: %w", err)
	}
	o.suspended = true
	return nil
}

func (o *malgoOutput) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

func (o *malgoOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.device.Uninit()
	o.ctx.Uninit()
	o.ctx.Free()
}
