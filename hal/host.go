//go:build !tinygo

package hal

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultSize     = 240
	DefaultInterval = 100 * time.Millisecond
)

// HostConfig describes the host surface shared by the window and headless
// runners.
type HostConfig struct {
	Width, Height int

	// Interval is the step cadence.
	Interval time.Duration

	Logger zerolog.Logger
}

func (c HostConfig) withDefaults() HostConfig {
	if c.Width <= 0 {
		c.Width = DefaultSize
	}
	if c.Height <= 0 {
		c.Height = c.Width
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

type hostHAL struct {
	log zerolog.Logger
	fb  *hostFramebuffer
}

// New returns a host HAL implementation.
func New(cfg HostConfig) HAL {
	return newHost(cfg.withDefaults())
}

func newHost(cfg HostConfig) *hostHAL {
	return &hostHAL{
		log: cfg.Logger,
		fb:  newHostFramebuffer(cfg.Width, cfg.Height),
	}
}

func (h *hostHAL) Logger() zerolog.Logger { return h.log }
func (h *hostHAL) Display() Display       { return hostDisplay{fb: h.fb} }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

// stepOnce runs step unless ctx has ended, in which case it reports ctx's
// error so the runner stops.
func stepOnce(ctx context.Context, step func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if step == nil {
		return nil
	}
	return step()
}
