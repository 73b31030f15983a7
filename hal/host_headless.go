//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	HostConfig

	// Ticks stops the runner after that many steps; 0 runs until ctx ends.
	Ticks uint64

	// SnapshotPath, if set, receives the last presented frame as PNG.
	SnapshotPath string
}

// RunHeadless steps the app on a ticker without opening a window.
func RunHeadless(ctx context.Context, cfg HeadlessConfig, newApp func(HAL) func() error) error {
	cfg.HostConfig = cfg.HostConfig.withDefaults()

	h := newHost(cfg.HostConfig)
	step := newApp(h)

	err := runTicker(ctx, cfg.Interval, cfg.Ticks, step)
	h.log.Debug().Uint64("frames", h.fb.presented.Load()).Msg("headless run finished")

	if cfg.SnapshotPath != "" {
		if serr := writePNG(h.fb, cfg.SnapshotPath); serr != nil {
			return errors.Join(err, serr)
		}
		h.log.Info().Str("path", cfg.SnapshotPath).Msg("snapshot written")
	}
	return err
}

func runTicker(ctx context.Context, d time.Duration, ticks uint64, step func() error) error {
	if d <= 0 {
		return fmt.Errorf("invalid headless interval: %s", d)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := stepOnce(ctx, step); err != nil {
				return err
			}
			tick++
			if ticks > 0 && tick >= ticks {
				return nil
			}
		}
	}
}

func writePNG(fb *hostFramebuffer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := png.Encode(f, fb.image()); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return f.Close()
}
