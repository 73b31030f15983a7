// Package sim is a link.Transport backed by a synthetic wearable. It emits
// heart-rate measurement frames and can inject connect failures, malformed
// frames and link drops.
package sim

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"pulse/internal/link"
)

var ErrConnectRefused = errors.New("sim: connection refused")

type Config struct {
	// Interval between notifications. Real straps send about one per second.
	Interval time.Duration

	BaseBPM  int
	Variance int

	ConnectFailureRate float64
	MalformedRate      float64

	// DropAfter ends the link after that many frames; 0 keeps it up.
	DropAfter int

	// Seed makes runs reproducible when non-zero.
	Seed uint64
}

// DefaultConfig is a healthy resting wearer on a clean link.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		BaseBPM:  72,
		Variance: 8,
	}
}

type Transport struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand

	connects atomic.Int64
}

func New(cfg Config) *Transport {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BaseBPM <= 0 {
		cfg.BaseBPM = 72
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Transport{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Connects returns how many Connect calls were made.
func (t *Transport) Connects() int64 { return t.connects.Load() }

func (t *Transport) Connect(ctx context.Context, id link.DeviceIdentity) (link.Conn, error) {
	t.connects.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	fail := t.rng.Float64() < t.cfg.ConnectFailureRate
	seed := t.rng.Uint64()
	t.mu.Unlock()

	if fail {
		return nil, ErrConnectRefused
	}
	c := &conn{
		cfg:  t.cfg,
		rng:  rand.New(rand.NewPCG(seed, seed>>1)),
		bpm:  t.cfg.BaseBPM,
		stop: make(chan struct{}),
		drop: make(chan struct{}),
	}
	c.alive.Store(true)
	return c, nil
}

type conn struct {
	cfg Config
	rng *rand.Rand
	bpm int

	alive atomic.Bool
	sent  atomic.Int64

	once     sync.Once
	stop     chan struct{}
	drop     chan struct{}
	dropOnce sync.Once
	wg       sync.WaitGroup
}

func (c *conn) Subscribe(fn func([]byte)) error {
	if !c.alive.Load() {
		return errors.New("sim: subscribe on closed connection")
	}
	c.wg.Add(1)
	go c.emit(fn)
	return nil
}

func (c *conn) emit(fn func([]byte)) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
		}

		fn(c.frame())
		n := c.sent.Add(1)
		if c.cfg.DropAfter > 0 && n >= int64(c.cfg.DropAfter) {
			c.lose()
			return
		}
	}
}

// frame builds the next measurement: flags byte then a uint8 value.
func (c *conn) frame() []byte {
	if c.cfg.MalformedRate > 0 && c.rng.Float64() < c.cfg.MalformedRate {
		return []byte{0x00}
	}

	// Random walk pulled back towards the base rate.
	step := c.rng.IntN(5) - 2
	switch {
	case c.bpm > c.cfg.BaseBPM+c.cfg.Variance:
		step = -1
	case c.bpm < c.cfg.BaseBPM-c.cfg.Variance:
		step = 1
	}
	c.bpm = clamp(c.bpm+step, 30, 220)
	return []byte{0x06, byte(c.bpm)}
}

func (c *conn) lose() {
	c.alive.Store(false)
	c.dropOnce.Do(func() { close(c.drop) })
}

func (c *conn) Alive() bool { return c.alive.Load() }

func (c *conn) Disconnected() <-chan struct{} { return c.drop }

func (c *conn) Close() error {
	c.once.Do(func() { close(c.stop) })
	c.lose()
	c.wg.Wait()
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
