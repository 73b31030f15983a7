package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type fakeConn struct {
	alive        atomic.Bool
	subscribeErr error

	mu      sync.Mutex
	handler func([]byte)
	closed  bool

	drop chan struct{}
}

func newFakeConn() *fakeConn {
	c := &fakeConn{drop: make(chan struct{})}
	c.alive.Store(true)
	return c
}

func (c *fakeConn) Subscribe(fn func([]byte)) error {
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Alive() bool { return c.alive.Load() }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Disconnected() <-chan struct{} { return c.drop }

// notify delivers a payload the way a transport callback would, even after
// the connection has been torn down.
func (c *fakeConn) notify(p []byte) {
	c.mu.Lock()
	fn := c.handler
	c.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeTransport hands out scripted results in order; once the script is
// exhausted every Connect fails.
type fakeTransport struct {
	mu      sync.Mutex
	script  []connectResult
	calls   int
	connCh  chan *fakeConn
	located atomic.Int32
	locErr  error
}

type connectResult struct {
	conn *fakeConn
	err  error
}

func newFakeTransport(script ...connectResult) *fakeTransport {
	return &fakeTransport{script: script, connCh: make(chan *fakeConn, 16)}
}

func (t *fakeTransport) Connect(ctx context.Context, id DeviceIdentity) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if len(t.script) == 0 {
		return nil, errors.New("no device")
	}
	r := t.script[0]
	t.script = t.script[1:]
	if r.err != nil {
		return nil, r.err
	}
	t.connCh <- r.conn
	return r.conn, nil
}

func (t *fakeTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type locatingTransport struct {
	*fakeTransport
}

func (t locatingTransport) Locate(ctx context.Context, id DeviceIdentity) error {
	t.located.Add(1)
	return t.locErr
}
