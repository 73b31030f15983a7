// Package app wires the link, the telemetry store, the mask and the renderer
// into a step function the hal runners drive.
package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"pulse/hal"
	"pulse/internal/config"
	"pulse/internal/heartrate"
	"pulse/internal/link"
	"pulse/internal/mask"
	"pulse/internal/mirror"
	"pulse/internal/render"
	"pulse/internal/telemetry"
)

type Options struct {
	Config    config.Config
	Device    link.DeviceIdentity
	Transport link.Transport

	// Mirror is nil unless the MQTT mirror is enabled.
	Mirror mirror.Client
}

type App struct {
	log     zerolog.Logger
	store   *telemetry.Store
	manager *link.Manager
	loop    *render.Loop
	mirror  *mirror.Service
	step    func() error

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds the app on h and starts the link goroutine. The link runs until
// ctx is cancelled or Close is called.
func New(ctx context.Context, h hal.HAL, opts Options) (*App, error) {
	cfg := opts.Config
	root := h.Logger()
	log := root.With().Str("component", "app").Logger()

	decode, err := heartrate.Decoder(cfg.Link.Decoder)
	if err != nil {
		return nil, err
	}

	store := telemetry.NewStore(cfg.Telemetry.HistoryCapacity)
	mgr, err := link.New(link.Config{
		Device:           opts.Device,
		Backoff:          backoffFor(cfg.Link),
		LivenessInterval: cfg.Link.LivenessInterval,
		ConnectTimeout:   cfg.Link.ConnectTimeout,
		Decode:           decode,
	}, opts.Transport, store, root.With().Str("component", "link").Logger())
	if err != nil {
		return nil, err
	}

	fb := h.Display().Framebuffer()
	if fb == nil {
		return nil, errors.New("app: no framebuffer")
	}
	size := min(fb.Width(), fb.Height())
	backdrop := mask.Build(mask.Config{
		Size:       size,
		Layers:     cfg.Render.MaskLayers,
		Steps:      mask.DefaultSteps,
		AlphaFloor: mask.DefaultFloor,
	})
	canvas := render.NewCanvas(fb)
	loop := render.NewLoop(store, render.NewRenderer(size, backdrop), canvas,
		root.With().Str("component", "render").Logger())

	a := &App{
		log:     log,
		store:   store,
		manager: mgr,
		loop:    loop,
		done:    make(chan struct{}),
	}
	a.step = guard(canvas, log, loop.Step)

	if opts.Mirror != nil {
		m := cfg.Mirror
		svc := mirror.NewService(m.Topic, m.Interval, m.QOS, opts.Mirror, store,
			root.With().Str("component", "mirror").Logger())
		if err := svc.Start(); err != nil {
			log.Warn().Err(err).Msg("mirror disabled")
		} else {
			mgr.OnTransition(svc.OnTransition)
			a.mirror = svc
		}
	}

	ctx, a.cancel = context.WithCancel(ctx)
	go func() {
		defer close(a.done)
		if err := mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("link manager exited")
		}
	}()

	log.Info().
		Str("device", opts.Device.String()).
		Int("canvas", size).
		Int("history", store.Capacity()).
		Msg("app started")
	return a, nil
}

// NewWithConfig adapts New to the hal runners. Setup errors surface from the
// first step.
func NewWithConfig(ctx context.Context, h hal.HAL, opts Options) (*App, func() error) {
	a, err := New(ctx, h, opts)
	if err != nil {
		return nil, func() error { return err }
	}
	return a, a.Step
}

// Step renders one frame.
func (a *App) Step() error { return a.step() }

func (a *App) Store() *telemetry.Store { return a.store }

func (a *App) Status() link.Status { return a.manager.Status() }

// Close stops the link and the mirror and waits for them.
func (a *App) Close() error {
	a.cancel()
	<-a.done
	if a.mirror != nil {
		return a.mirror.Stop()
	}
	return nil
}

func backoffFor(c config.LinkConfig) link.Backoff {
	if c.Backoff == config.BackoffExponential {
		return link.ExponentialBackoff(c.RetryDelay, c.MaxRetryDelay, c.Jitter)
	}
	b := link.FixedBackoff(c.RetryDelay)
	b.Jitter = c.Jitter
	return b
}
