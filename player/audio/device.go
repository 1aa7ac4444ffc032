//go:build !nocgo

package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/narrate/player"
)

// oto allows one context per process, so every segment context shares it.
var (
	deviceMu sync.Mutex
	device   *outputDevice
)

type outputDevice struct {
	ctx        *oto.Context
	sampleRate int
}

// openDevice returns the process output device, creating it at sampleRate on
// first use. A later request for a different rate fails with
// ErrSampleRateMismatch.
func openDevice(sampleRate int, bufferSize time.Duration) (*outputDevice, error) {
	deviceMu.Lock()
	defer deviceMu.Unlock()

	if device != nil {
		if device.sampleRate != sampleRate {
			return nil, fmt.Errorf("%w: device runs at %d Hz, segment is %d Hz",
				player.ErrSampleRateMismatch, device.sampleRate, sampleRate)
		}
		return device, nil
	}

	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	}
	log.Debug("Opening audio device", "sample_rate", sampleRate, "buffer", bufferSize)

	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", player.ErrContextUnavailable, err)
	}

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("%w: device initialization timeout", player.ErrContextUnavailable)
	}

	device = &outputDevice{ctx: ctx, sampleRate: sampleRate}
	log.Info("Audio device ready", "sample_rate", sampleRate)
	return device, nil
}

func (d *outputDevice) newPlayer(r io.Reader, volume float64) *oto.Player {
	p := d.ctx.NewPlayer(r)
	p.SetVolume(volume)
	return p
}
