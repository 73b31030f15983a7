package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Device.ScanWindow < 0 {
		add("device.scan_window must not be negative")
	}

	l := cfg.Link
	if l.RetryDelay <= 0 {
		add("link.retry_delay must be positive")
	}
	switch l.Backoff {
	case BackoffFixed:
	case BackoffExponential:
		if l.MaxRetryDelay < l.RetryDelay {
			add("link.max_retry_delay (%s) must be at least link.retry_delay (%s)", l.MaxRetryDelay, l.RetryDelay)
		}
	default:
		add("link.backoff must be %q or %q, got %q", BackoffFixed, BackoffExponential, l.Backoff)
	}
	if l.Jitter < 0 || l.Jitter > 1 {
		add("link.jitter must be within [0, 1]")
	}
	if l.LivenessInterval <= 0 {
		add("link.liveness_interval must be positive")
	}
	if l.ConnectTimeout < 0 {
		add("link.connect_timeout must not be negative")
	}
	if l.Decoder != DecoderBasic && l.Decoder != DecoderFull {
		add("link.decoder must be %q or %q, got %q", DecoderBasic, DecoderFull, l.Decoder)
	}

	if cfg.Telemetry.HistoryCapacity < 2 {
		add("telemetry.history_capacity must be at least 2")
	}

	r := cfg.Render
	if r.TickInterval <= 0 {
		add("render.tick_interval must be positive")
	}
	if r.CanvasSize < 64 || r.CanvasSize > 2048 {
		add("render.canvas_size must be within [64, 2048]")
	}
	if r.MaskLayers < 0 || r.MaskLayers > 150 {
		add("render.mask_layers must be within [0, 150]")
	}
	if r.WindowScale < 1 {
		add("render.window_scale must be at least 1")
	}

	if m := cfg.Mirror; m.Enabled {
		if u, err := url.Parse(m.Broker); err != nil || u.Scheme == "" || u.Host == "" {
			add("mirror.broker must be a URL like tcp://host:1883, got %q", m.Broker)
		}
		if m.Topic == "" {
			add("mirror.topic is required when the mirror is enabled")
		}
		if m.QOS > 2 {
			add("mirror.qos must be 0, 1 or 2")
		}
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		add("log.level: %v", err)
	}

	return errors.Join(errs...)
}
