// Package config loads the monitor's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Link      LinkConfig      `yaml:"link"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Render    RenderConfig    `yaml:"render"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Log       LogConfig       `yaml:"log"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Address string `yaml:"address"` // skip discovery when set
	Name    string `yaml:"name"`

	NameFilter []string      `yaml:"name_filter"` // discovery keeps names containing any of these
	ScanWindow time.Duration `yaml:"scan_window"`
}

// ---- LINK ----

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"

	DecoderBasic = "basic"
	DecoderFull  = "full"
)

type LinkConfig struct {
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Backoff       string        `yaml:"backoff"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
	Jitter        float64       `yaml:"jitter"`

	LivenessInterval time.Duration `yaml:"liveness_interval"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"` // 0 leaves it to the adapter

	Decoder string `yaml:"decoder"`
}

// ---- TELEMETRY ----

type TelemetryConfig struct {
	HistoryCapacity int `yaml:"history_capacity"`
}

// ---- RENDER ----

type RenderConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	CanvasSize   int           `yaml:"canvas_size"`
	MaskLayers   int           `yaml:"mask_layers"`
	WindowScale  int           `yaml:"window_scale"`
}

// ---- MIRROR ----

type MirrorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"` // a random suffix is appended
	Topic    string        `yaml:"topic"`
	QOS      byte          `yaml:"qos"`
	Interval time.Duration `yaml:"interval"` // minimum gap between snapshot publishes
}

// ---- LOG ----

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			NameFilter: []string{"xiaomi", "小米"},
			ScanWindow: 10 * time.Second,
		},
		Link: LinkConfig{
			RetryDelay:       5 * time.Second,
			Backoff:          BackoffFixed,
			MaxRetryDelay:    time.Minute,
			LivenessInterval: time.Second,
			Decoder:          DecoderBasic,
		},
		Telemetry: TelemetryConfig{
			HistoryCapacity: 50,
		},
		Render: RenderConfig{
			TickInterval: 100 * time.Millisecond,
			CanvasSize:   240,
			MaskLayers:   60,
			WindowScale:  1,
		},
		Mirror: MirrorConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "pulse",
			Topic:    "pulse",
			QOS:      0,
			Interval: time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
