// Package link owns the connection to the wearable: connect, subscribe,
// watch for the link to drop and retry forever.
package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pulse/internal/heartrate"
)

// DefaultLivenessInterval is how often a subscribed connection is polled.
const DefaultLivenessInterval = time.Second

var ErrAlreadyRunning = errors.New("link: manager already running")

// Sink receives decoded samples. telemetry.Store implements it.
type Sink interface {
	Push(heartrate.Sample)
	MarkConnected()
	Reset()
}

type Config struct {
	Device  DeviceIdentity
	Backoff Backoff

	LivenessInterval time.Duration

	// ConnectTimeout bounds a single Connect call; 0 leaves it to the transport.
	ConnectTimeout time.Duration

	// Decode defaults to heartrate.Decode.
	Decode heartrate.DecodeFunc
}

// Manager drives the link state machine. Its zero value is not usable; call New.
type Manager struct {
	cfg       Config
	transport Transport
	sink      Sink
	log       zerolog.Logger

	running atomic.Bool
	dropped atomic.Uint64

	mu        sync.Mutex
	status    Status
	observers []func(Status)
}

func New(cfg Config, t Transport, sink Sink, log zerolog.Logger) (*Manager, error) {
	if t == nil {
		return nil, errors.New("link: transport required")
	}
	if sink == nil {
		return nil, errors.New("link: sink required")
	}
	if cfg.Device.Address == "" && cfg.Device.Name == "" {
		return nil, errors.New("link: device address or name required")
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = DefaultLivenessInterval
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = FixedBackoff(DefaultRetryDelay)
	}
	if cfg.Decode == nil {
		cfg.Decode = heartrate.Decode
	}

	return &Manager{
		cfg:       cfg,
		transport: t,
		sink:      sink,
		log:       log,
		status:    Status{State: Disconnected, Since: time.Now()},
	}, nil
}

// OnTransition registers fn to be called after every state change. fn runs on
// the link goroutine and must not block. Register before Run.
func (m *Manager) OnTransition(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Status returns the current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Dropped returns the number of notifications that failed to decode.
func (m *Manager) Dropped() uint64 { return m.dropped.Load() }

// Run drives the link until ctx is cancelled. It only ever returns ctx.Err()
// (or ErrAlreadyRunning); every link failure is retried.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	m.log.Info().Str("device", m.cfg.Device.String()).Msg("link manager started")

	var (
		attempt int
		located bool
	)
	for {
		session := uuid.NewString()
		subscribed, err := m.session(ctx, session, &located)
		if ctx.Err() != nil {
			return m.shutdown(ctx)
		}
		if subscribed {
			attempt = 0
		}

		// The store is already clear if the session got as far as opening the
		// gate; connect failures still need it.
		m.sink.Reset()

		delay := m.cfg.Backoff.Delay(attempt)
		attempt++
		m.transition(Status{
			State:   Retrying,
			Delay:   delay,
			Attempt: attempt,
			Err:     err,
			Session: session,
		})

		if !wait(ctx, delay) {
			return m.shutdown(ctx)
		}
	}
}

// session runs one connect/subscribe/monitor cycle. subscribed reports whether
// notifications were enabled before the session ended.
func (m *Manager) session(ctx context.Context, session string, located *bool) (subscribed bool, err error) {
	if loc, ok := m.transport.(Locator); ok && !*located {
		m.transition(Status{State: Scanning, Session: session})
		if err := loc.Locate(ctx, m.cfg.Device); err != nil {
			return false, &LinkError{Kind: ConnectFailure, Err: err}
		}
		*located = true
	}

	m.transition(Status{State: Connecting, Session: session})

	cctx := ctx
	cancel := func() {}
	if m.cfg.ConnectTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	}
	conn, err := m.transport.Connect(cctx, m.cfg.Device)
	cancel()
	if err != nil {
		return false, &LinkError{Kind: ConnectFailure, Err: err}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			m.log.Debug().Err(cerr).Str("session", session).Msg("close connection")
		}
	}()

	// Open before Subscribe so the first notification is not lost; shut
	// (clearing the store) before the connection is closed. Each session gets
	// its own gate so late callbacks from an old connection stay out.
	g := &gate{active: true}
	defer g.shut(m.sink)

	if err := conn.Subscribe(func(p []byte) { m.handle(g, p) }); err != nil {
		return false, &LinkError{Kind: SubscribeFailure, Err: err}
	}
	m.sink.MarkConnected()
	m.transition(Status{State: Subscribed, Session: session})

	return true, m.monitor(ctx, conn)
}

func (m *Manager) monitor(ctx context.Context, conn Conn) error {
	var dropped <-chan struct{}
	if n, ok := conn.(DisconnectNotifier); ok {
		dropped = n.Disconnected()
	}

	t := time.NewTicker(m.cfg.LivenessInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-dropped:
			return &LinkError{Kind: LinkLost, Err: ErrPeerDisconnected}
		case <-t.C:
			if !conn.Alive() {
				return &LinkError{Kind: LinkLost, Err: ErrNotAlive}
			}
		}
	}
}

func (m *Manager) handle(g *gate, payload []byte) {
	v, err := m.cfg.Decode(payload)
	if err != nil {
		m.dropped.Add(1)
		m.log.Warn().Err(err).Int("len", len(payload)).Msg("dropping notification")
		return
	}
	if !g.push(m.sink, v) {
		return
	}
	m.log.Debug().Uint16("bpm", uint16(v)).Msg("sample")
}

func (m *Manager) shutdown(ctx context.Context) error {
	m.sink.Reset()
	m.transition(Status{State: Disconnected})
	m.log.Info().Msg("link manager stopped")
	return ctx.Err()
}

func (m *Manager) transition(st Status) {
	st.Since = time.Now()

	m.mu.Lock()
	m.status = st
	observers := append([]func(Status){}, m.observers...)
	m.mu.Unlock()

	ev := m.log.Info().Str("state", st.State.String())
	if st.Session != "" {
		ev = ev.Str("session", st.Session)
	}
	if st.State == Retrying {
		ev = ev.Dur("delay", st.Delay).Int("attempt", st.Attempt).Err(st.Err)
	}
	ev.Msg("link state")

	for _, fn := range observers {
		fn(st)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// gate keeps notifications from a dying session out of the sink. Once shut,
// push is a no-op.
type gate struct {
	mu     sync.Mutex
	active bool
}

func (g *gate) shut(s Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	s.Reset()
}

func (g *gate) push(s Sink, v heartrate.Sample) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return false
	}
	s.Push(v)
	return true
}
