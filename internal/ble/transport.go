package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"pulse/internal/link"
)

var (
	ErrNotLocated       = errors.New("ble: device not located")
	ErrNoHeartRate      = errors.New("ble: heart rate service not found")
	ErrNoMeasurementChr = errors.New("ble: heart rate measurement characteristic not found")
)

// Transport connects to one wearable through a bluetooth adapter. It
// implements link.Transport and link.Locator.
type Transport struct {
	adapter *bluetooth.Adapter
	log     zerolog.Logger

	// LocateWindow bounds each scan in Locate. Zero scans until found.
	LocateWindow time.Duration

	mu      sync.Mutex
	addr    bluetooth.Address
	located bool

	conns cmap.ConcurrentMap[string, *conn]
}

// NewTransport wires the adapter's connect handler so disconnects reach the
// matching connection immediately.
func NewTransport(adapter *bluetooth.Adapter, log zerolog.Logger) *Transport {
	t := &Transport{
		adapter: adapter,
		log:     log,
		conns:   cmap.New[*conn](),
	}
	adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if connected {
			return
		}
		if c, ok := t.conns.Get(key(d.Address.String())); ok {
			c.lost()
		}
	})
	return t
}

// Locate scans until an advertiser matching id is seen. The address is
// remembered for every later Connect.
func (t *Transport) Locate(ctx context.Context, id link.DeviceIdentity) error {
	want := key(id.Address)
	name := strings.ToLower(id.Name)

	var found atomic.Pointer[bluetooth.Address]
	err := scan(ctx, t.adapter, t.LocateWindow, func(r bluetooth.ScanResult) bool {
		match := want != "" && key(r.Address.String()) == want
		if want == "" && name != "" {
			match = strings.ToLower(r.LocalName()) == name
		}
		if !match {
			return false
		}
		a := r.Address
		found.Store(&a)
		return true
	})
	if err != nil {
		return fmt.Errorf("scan for %s: %w", id, err)
	}
	a := found.Load()
	if a == nil {
		return fmt.Errorf("%w: %s", ErrNoDevice, id)
	}

	t.mu.Lock()
	t.addr = *a
	t.located = true
	t.mu.Unlock()

	t.log.Info().Str("address", a.String()).Msg("device located")
	return nil
}

// Connect opens a connection to the located device. The adapter call cannot
// be cancelled; if ctx ends first the late connection is torn down.
func (t *Transport) Connect(ctx context.Context, id link.DeviceIdentity) (link.Conn, error) {
	t.mu.Lock()
	addr, ok := t.addr, t.located
	t.mu.Unlock()
	if !ok {
		return nil, ErrNotLocated
	}

	type result struct {
		dev bluetooth.Device
		err error
	}
	ch := make(chan result, 1)
	go func() {
		d, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- result{d, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		c := &conn{
			device: r.dev,
			key:    key(addr.String()),
			drop:   make(chan struct{}),
			owner:  t,
		}
		c.alive.Store(true)
		t.conns.Set(c.key, c)
		return c, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.dev.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

func key(addr string) string { return strings.ToUpper(strings.TrimSpace(addr)) }

type conn struct {
	device bluetooth.Device
	key    string
	owner  *Transport

	alive    atomic.Bool
	drop     chan struct{}
	dropOnce sync.Once
}

func (c *conn) Subscribe(fn func([]byte)) error {
	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{bluetooth.ServiceUUIDHeartRate})
	if err != nil {
		return fmt.Errorf("discover services: %w", err)
	}
	if len(svcs) == 0 {
		return ErrNoHeartRate
	}
	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{bluetooth.CharacteristicUUIDHeartRateMeasurement})
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return ErrNoMeasurementChr
	}
	if err := chars[0].EnableNotifications(fn); err != nil {
		return fmt.Errorf("enable notifications: %w", err)
	}
	return nil
}

func (c *conn) Alive() bool { return c.alive.Load() }

func (c *conn) Disconnected() <-chan struct{} { return c.drop }

func (c *conn) lost() {
	c.alive.Store(false)
	c.dropOnce.Do(func() { close(c.drop) })
}

func (c *conn) Close() error {
	c.owner.conns.RemoveCb(c.key, func(_ string, v *conn, exists bool) bool {
		return exists && v == c
	})
	wasAlive := c.alive.Load()
	c.lost()
	if !wasAlive {
		return nil
	}
	return c.device.Disconnect()
}
