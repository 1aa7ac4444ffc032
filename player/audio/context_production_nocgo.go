//go:build nocgo

package audio

import (
	"errors"
	"io"

	"github.com/dgnsrekt/narrate/player"
)

const productionAvailable = false

var errNoAudioSupport = errors.New("audio not available in nocgo build")

// ProductionContext is unavailable in builds without cgo.
type ProductionContext struct{}

// NewProductionContext returns a context whose every operation fails.
func NewProductionContext(ProductionOptions) *ProductionContext {
	return &ProductionContext{}
}

func (c *ProductionContext) NewMedia([]byte) (Media, error) {
	return nil, errors.Join(player.ErrContextUnavailable, errNoAudioSupport)
}

func (c *ProductionContext) Route(Media, io.Writer) error { return errNoAudioSupport }
func (c *ProductionContext) Suspend() error               { return nil }
func (c *ProductionContext) Resume() error                { return nil }
func (c *ProductionContext) Close() error                 { return nil }
func (c *ProductionContext) SampleRate() int              { return 0 }
func (c *ProductionContext) ChannelCount() int            { return Channels }
