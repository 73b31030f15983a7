//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"pulse/app"
	"pulse/hal"
	"pulse/internal/ble"
	"pulse/internal/buildinfo"
	"pulse/internal/config"
	"pulse/internal/link"
	"pulse/internal/logging"
	"pulse/internal/mirror"
	"pulse/internal/sim"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (defaults apply when empty).")
		address    = flag.String("address", "", "Wearable address; skips discovery.")
		headless   = flag.Bool("headless", false, "Run without a window.")
		ticks      = flag.Uint64("ticks", 0, "Stop after N frames in headless mode (0 = run forever).")
		snapshot   = flag.String("snapshot", "", "Write the last headless frame to this PNG file.")
		useSim     = flag.Bool("sim", false, "Use a simulated wearable instead of Bluetooth.")
		logLevel   = flag.String("log-level", "", "Override log.level.")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *address != "" {
		cfg.Device.Address = *address
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log := logging.New(cfg.Log, os.Stderr)
	buildinfo.Fields(log.Info()).Msg("pulse starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := options(ctx, cfg, *useSim, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	host := hal.HostConfig{
		Width:    cfg.Render.CanvasSize,
		Height:   cfg.Render.CanvasSize,
		Interval: cfg.Render.TickInterval,
		Logger:   log,
	}

	var a *app.App
	newApp := func(h hal.HAL) func() error {
		var step func() error
		a, step = app.NewWithConfig(ctx, h, opts)
		return step
	}

	if *headless {
		err = hal.RunHeadless(ctx, hal.HeadlessConfig{HostConfig: host, Ticks: *ticks, SnapshotPath: *snapshot}, newApp)
	} else {
		err = hal.RunWindow(ctx, hal.WindowConfig{HostConfig: host, Scale: cfg.Render.WindowScale, Title: "Pulse"}, newApp)
	}

	stop()
	if a != nil {
		if cerr := a.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("shutdown")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
}

// options resolves the device and transport. Without an address it scans
// and picks the strongest matching advertiser.
func options(ctx context.Context, cfg config.Config, useSim bool, log zerolog.Logger) (app.Options, error) {
	opts := app.Options{Config: cfg}
	if cfg.Mirror.Enabled {
		opts.Mirror = mirror.NewClient(cfg.Mirror.Broker, cfg.Mirror.ClientID)
	}

	if useSim {
		opts.Device = link.DeviceIdentity{Address: "SIM", Name: "Simulated band"}
		opts.Transport = sim.New(sim.DefaultConfig())
		return opts, nil
	}

	adapter, err := ble.Adapter()
	if err != nil {
		return opts, err
	}
	bleLog := log.With().Str("component", "ble").Logger()

	opts.Device = link.DeviceIdentity{Address: cfg.Device.Address, Name: cfg.Device.Name}
	if opts.Device.Address == "" {
		bleLog.Info().Dur("window", cfg.Device.ScanWindow).Strs("filter", cfg.Device.NameFilter).Msg("scanning for wearables")
		found, err := ble.Discover(ctx, adapter, cfg.Device.ScanWindow, ble.NameContains(cfg.Device.NameFilter...))
		if err != nil {
			return opts, err
		}
		best, err := ble.Best(found)
		if err != nil {
			return opts, err
		}
		bleLog.Info().Str("name", best.Name).Str("address", best.Address).Int16("rssi", best.RSSI).
			Int("candidates", len(found)).Msg("selected wearable")
		opts.Device = link.DeviceIdentity{Address: best.Address, Name: best.Name}
	}

	opts.Transport = ble.NewTransport(adapter, bleLog)
	return opts, nil
}
