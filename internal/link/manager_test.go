package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/heartrate"
	"pulse/internal/telemetry"
)

var testDevice = DeviceIdentity{Address: "E6:16:A8:8A:7A:68", Name: "Xiaomi Smart Band"}

func testConfig() Config {
	return Config{
		Device:           testDevice,
		Backoff:          FixedBackoff(5 * time.Millisecond),
		LivenessInterval: 2 * time.Millisecond,
	}
}

// observed is a transition plus the store contents at the moment it was
// published.
type observed struct {
	Status
	snap telemetry.Snapshot
}

type recorder struct {
	mu    sync.Mutex
	store *telemetry.Store
	seen  []observed
	ch    chan observed
}

func newRecorder(store *telemetry.Store) *recorder {
	return &recorder{store: store, ch: make(chan observed, 1024)}
}

func (r *recorder) observe(st Status) {
	o := observed{Status: st, snap: r.store.Snapshot()}
	r.mu.Lock()
	r.seen = append(r.seen, o)
	r.mu.Unlock()
	select {
	case r.ch <- o:
	default:
	}
}

func (r *recorder) waitFor(t *testing.T, s State) observed {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case o := <-r.ch:
			if o.State == s {
				return o
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", s)
		}
	}
}

func startManager(t *testing.T, cfg Config, tr Transport) (*Manager, *telemetry.Store, *recorder, func()) {
	t.Helper()
	store := telemetry.NewStore(telemetry.DefaultCapacity)
	m, err := New(cfg, tr, store, zerolog.Nop())
	require.NoError(t, err)

	rec := newRecorder(store)
	m.OnTransition(rec.observe)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("manager did not stop")
		}
	}
	return m, store, rec, stop
}

func waitSnapshot(t *testing.T, s *telemetry.Store, cond func(telemetry.Snapshot) bool) telemetry.Snapshot {
	t.Helper()
	var snap telemetry.Snapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return cond(snap)
	}, 2*time.Second, time.Millisecond)
	return snap
}

func TestNewValidates(t *testing.T) {
	store := telemetry.NewStore(1)
	_, err := New(testConfig(), nil, store, zerolog.Nop())
	require.Error(t, err)
	_, err = New(testConfig(), newFakeTransport(), nil, zerolog.Nop())
	require.Error(t, err)
	_, err = New(Config{}, newFakeTransport(), store, zerolog.Nop())
	require.Error(t, err)

	m, err := New(Config{Device: testDevice}, newFakeTransport(), store, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultLivenessInterval, m.cfg.LivenessInterval)
	assert.Equal(t, DefaultRetryDelay, m.cfg.Backoff.Delay(3))
	assert.Equal(t, Disconnected, m.Status().State)
}

func TestSubscribePushesSamples(t *testing.T) {
	conn := newFakeConn()
	tr := newFakeTransport(connectResult{conn: conn})
	m, store, rec, stop := startManager(t, testConfig(), tr)
	defer stop()

	rec.waitFor(t, Subscribed)
	assert.Equal(t, Subscribed, m.Status().State)

	snap := store.Snapshot()
	assert.True(t, snap.Connected)
	assert.False(t, snap.HasLatest)

	for _, v := range []byte{72, 75, 80} {
		conn.notify([]byte{0x00, v})
	}
	snap = waitSnapshot(t, store, func(s telemetry.Snapshot) bool { return len(s.History) == 3 })
	assert.Equal(t, heartrate.Sample(80), snap.Latest)
	assert.Equal(t, []heartrate.Sample{72, 75, 80}, snap.History)
}

func TestEveryObserverSeesTransitions(t *testing.T) {
	store := telemetry.NewStore(telemetry.DefaultCapacity)
	m, err := New(testConfig(), newFakeTransport(connectResult{conn: newFakeConn()}), store, zerolog.Nop())
	require.NoError(t, err)

	first, second := newRecorder(store), newRecorder(store)
	m.OnTransition(first.observe)
	m.OnTransition(second.observe)
	// Observers run outside the manager lock, so one may register another.
	m.OnTransition(func(Status) { m.OnTransition(func(Status) {}) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	first.waitFor(t, Subscribed)
	second.waitFor(t, Subscribed)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	require.Len(t, second.seen, len(first.seen))
	for i := range first.seen {
		assert.Equal(t, first.seen[i].State, second.seen[i].State)
	}
	assert.Equal(t, Disconnected, first.seen[len(first.seen)-1].State)
}

func TestMalformedNotificationIsDropped(t *testing.T) {
	conn := newFakeConn()
	tr := newFakeTransport(connectResult{conn: conn})
	m, store, rec, stop := startManager(t, testConfig(), tr)
	defer stop()

	rec.waitFor(t, Subscribed)
	conn.notify([]byte{0x00, 90})
	conn.notify([]byte{0x00})
	conn.notify(nil)
	conn.notify([]byte{0x00, 91})

	snap := waitSnapshot(t, store, func(s telemetry.Snapshot) bool { return len(s.History) == 2 })
	assert.Equal(t, []heartrate.Sample{90, 91}, snap.History)
	assert.Equal(t, uint64(2), m.Dropped())
	assert.Equal(t, Subscribed, m.Status().State)
}

func TestLivenessFailureRetriesAndClearsStore(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	tr := newFakeTransport(connectResult{conn: first}, connectResult{conn: second})
	_, store, rec, stop := startManager(t, testConfig(), tr)
	defer stop()

	rec.waitFor(t, Subscribed)
	first.notify([]byte{0x00, 70})
	waitSnapshot(t, store, func(s telemetry.Snapshot) bool { return s.HasLatest })

	first.alive.Store(false)
	st := rec.waitFor(t, Retrying)
	assert.Equal(t, LinkLost, KindOf(st.Err))
	assert.ErrorIs(t, st.Err, ErrNotAlive)
	assert.Equal(t, 1, st.Attempt)

	assert.False(t, st.snap.Connected)
	assert.Empty(t, st.snap.History)
	assert.False(t, st.snap.HasLatest)

	// A late callback from the dead connection must not resurrect the data.
	first.notify([]byte{0x00, 71})
	assert.False(t, store.Snapshot().HasLatest)
	assert.True(t, first.isClosed())

	rec.waitFor(t, Subscribed)
	second.notify([]byte{0x00, 99})
	snap := waitSnapshot(t, store, func(s telemetry.Snapshot) bool { return s.HasLatest })
	assert.Equal(t, []heartrate.Sample{99}, snap.History)
}

func TestDisconnectEventRetries(t *testing.T) {
	conn := newFakeConn()
	tr := newFakeTransport(connectResult{conn: conn})
	cfg := testConfig()
	cfg.LivenessInterval = time.Hour
	_, store, rec, stop := startManager(t, cfg, tr)
	defer stop()

	rec.waitFor(t, Subscribed)
	conn.notify([]byte{0x00, 120})
	close(conn.drop)

	st := rec.waitFor(t, Retrying)
	assert.ErrorIs(t, st.Err, ErrPeerDisconnected)
	assert.False(t, store.Snapshot().Connected)
}

func TestConnectAndSubscribeFailuresRetryForever(t *testing.T) {
	bad := newFakeConn()
	bad.subscribeErr = errors.New("characteristic not found")
	good := newFakeConn()
	tr := newFakeTransport(
		connectResult{err: errors.New("le-connection-abort-by-local")},
		connectResult{conn: bad},
		connectResult{err: errors.New("timeout")},
		connectResult{conn: good},
	)
	_, store, rec, stop := startManager(t, testConfig(), tr)
	defer stop()

	st := rec.waitFor(t, Retrying)
	assert.Equal(t, ConnectFailure, KindOf(st.Err))
	assert.Equal(t, 1, st.Attempt)

	st = rec.waitFor(t, Retrying)
	assert.Equal(t, SubscribeFailure, KindOf(st.Err))
	assert.Equal(t, 2, st.Attempt)
	assert.True(t, bad.isClosed())

	st = rec.waitFor(t, Retrying)
	assert.Equal(t, ConnectFailure, KindOf(st.Err))
	assert.Equal(t, 3, st.Attempt)

	rec.waitFor(t, Subscribed)
	assert.True(t, store.Snapshot().Connected)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, o := range rec.seen {
		if o.State == Retrying {
			assert.False(t, o.snap.Connected, "store must be cleared before retrying")
		}
	}
}

func TestAttemptCounterResetsAfterSubscription(t *testing.T) {
	conn := newFakeConn()
	tr := newFakeTransport(
		connectResult{err: errors.New("busy")},
		connectResult{conn: conn},
	)
	_, _, rec, stop := startManager(t, testConfig(), tr)
	defer stop()

	st := rec.waitFor(t, Retrying)
	assert.Equal(t, 1, st.Attempt)
	rec.waitFor(t, Subscribed)

	conn.alive.Store(false)
	st = rec.waitFor(t, Retrying)
	assert.Equal(t, 1, st.Attempt)
}

func TestLocatorScansOnce(t *testing.T) {
	conn := newFakeConn()
	ft := newFakeTransport(connectResult{err: errors.New("busy")}, connectResult{conn: conn})
	tr := locatingTransport{ft}
	_, _, rec, stop := startManager(t, testConfig(), tr)
	defer stop()

	rec.waitFor(t, Scanning)
	rec.waitFor(t, Subscribed)
	assert.Equal(t, int32(1), ft.located.Load())
}

func TestShutdownClearsStore(t *testing.T) {
	conn := newFakeConn()
	tr := newFakeTransport(connectResult{conn: conn})
	m, store, rec, stop := startManager(t, testConfig(), tr)

	rec.waitFor(t, Subscribed)
	conn.notify([]byte{0x00, 64})
	waitSnapshot(t, store, func(s telemetry.Snapshot) bool { return s.HasLatest })

	stop()
	assert.Equal(t, Disconnected, m.Status().State)
	assert.False(t, store.Snapshot().Connected)
	assert.True(t, conn.isClosed())
}

func TestShutdownDuringRetryDelay(t *testing.T) {
	cfg := testConfig()
	cfg.Backoff = FixedBackoff(time.Hour)
	tr := newFakeTransport(connectResult{err: errors.New("nope")})
	_, _, rec, stop := startManager(t, cfg, tr)

	st := rec.waitFor(t, Retrying)
	assert.Equal(t, time.Hour, st.Delay)
	stop()
	assert.Equal(t, 1, tr.Calls())
}

func TestRunTwice(t *testing.T) {
	tr := newFakeTransport(connectResult{conn: newFakeConn()})
	m, _, rec, stop := startManager(t, testConfig(), tr)
	defer stop()

	rec.waitFor(t, Subscribed)
	require.ErrorIs(t, m.Run(context.Background()), ErrAlreadyRunning)
}

func TestConnectTimeoutIsApplied(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 5 * time.Millisecond
	tr := &blockingTransport{}
	_, _, rec, stop := startManager(t, cfg, tr)
	defer stop()

	st := rec.waitFor(t, Retrying)
	assert.ErrorIs(t, st.Err, context.DeadlineExceeded)
}

type blockingTransport struct{}

func (blockingTransport) Connect(ctx context.Context, id DeviceIdentity) (Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
