package ble

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"tinygo.org/x/bluetooth"
)

// DefaultNameFilter matches the wearables the monitor was built for.
var DefaultNameFilter = []string{"xiaomi", "小米"}

// ErrNoDevice is returned when a scan window closes without a match.
var ErrNoDevice = errors.New("ble: no matching device found")

// Peripheral is one advertiser seen during a scan.
type Peripheral struct {
	Address  string
	Name     string
	RSSI     int16
	Seen     int
	LastSeen time.Time

	addr bluetooth.Address
}

// Filter reports whether an advertised name is a candidate.
type Filter func(name string) bool

// NameContains matches names containing any of subs, ignoring case. With no
// subs every named advertiser matches.
func NameContains(subs ...string) Filter {
	lowered := make([]string, 0, len(subs))
	for _, s := range subs {
		if s = strings.TrimSpace(s); s != "" {
			lowered = append(lowered, strings.ToLower(s))
		}
	}
	return func(name string) bool {
		if name == "" {
			return false
		}
		if len(lowered) == 0 {
			return true
		}
		n := strings.ToLower(name)
		for _, s := range lowered {
			if strings.Contains(n, s) {
				return true
			}
		}
		return false
	}
}

// table aggregates advertisements by address. Scan callbacks run on the
// adapter's goroutine while readers may rank concurrently.
type table struct {
	m cmap.ConcurrentMap[string, Peripheral]
}

func newTable() *table {
	return &table{m: cmap.New[Peripheral]()}
}

// observe folds one advertisement in, keeping the strongest RSSI seen and the
// last non-empty name.
func (t *table) observe(p Peripheral) {
	t.m.Upsert(p.Address, p, func(exist bool, old, nv Peripheral) Peripheral {
		if !exist {
			nv.Seen = 1
			return nv
		}
		old.Seen++
		old.LastSeen = nv.LastSeen
		if nv.Name != "" {
			old.Name = nv.Name
		}
		if nv.RSSI > old.RSSI {
			old.RSSI = nv.RSSI
		}
		return old
	})
}

// ranked returns the peripherals accepted by match, strongest first. Ties
// break on address so the order is stable.
func (t *table) ranked(match Filter) []Peripheral {
	out := make([]Peripheral, 0, t.m.Count())
	for _, p := range t.m.Items() {
		if match == nil || match(p.Name) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Discover scans for window (or until ctx is done) and returns every
// advertiser accepted by match, strongest signal first.
func Discover(ctx context.Context, adapter *bluetooth.Adapter, window time.Duration, match Filter) ([]Peripheral, error) {
	t := newTable()
	err := scan(ctx, adapter, window, func(r bluetooth.ScanResult) bool {
		t.observe(fromScan(r))
		return false
	})
	if err != nil {
		return nil, err
	}
	return t.ranked(match), nil
}

// Best picks the strongest peripheral, or ErrNoDevice.
func Best(ps []Peripheral) (Peripheral, error) {
	if len(ps) == 0 {
		return Peripheral{}, ErrNoDevice
	}
	return ps[0], nil
}

func fromScan(r bluetooth.ScanResult) Peripheral {
	return Peripheral{
		Address:  r.Address.String(),
		Name:     r.LocalName(),
		RSSI:     r.RSSI,
		LastSeen: time.Now(),
		addr:     r.Address,
	}
}

// scan runs the adapter scan until window elapses, ctx is done or stop
// returns true. A zero window scans until ctx or stop ends it.
func scan(ctx context.Context, adapter *bluetooth.Adapter, window time.Duration, stop func(bluetooth.ScanResult) bool) error {
	if window > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, window)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if stop(r) {
				_ = a.StopScan()
			}
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = adapter.StopScan()
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil
		}
		return ctx.Err()
	}
}
