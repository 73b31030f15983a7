package link

import "context"

// DeviceIdentity names the wearable to connect to. It is resolved before the
// manager starts and never changes afterwards.
type DeviceIdentity struct {
	Address string
	Name    string
}

func (d DeviceIdentity) String() string {
	if d.Name == "" {
		return d.Address
	}
	return d.Name + " (" + d.Address + ")"
}

// Transport opens connections to a device.
type Transport interface {
	Connect(ctx context.Context, id DeviceIdentity) (Conn, error)
}

// Locator is implemented by transports that must find the device on air
// before they can connect to it.
type Locator interface {
	Locate(ctx context.Context, id DeviceIdentity) error
}

// Conn is one established connection.
type Conn interface {
	// Subscribe enables notifications on the heart-rate channel. fn may be
	// called from any goroutine.
	Subscribe(fn func(payload []byte)) error

	// Alive reports whether the connection is still up.
	Alive() bool

	Close() error
}

// DisconnectNotifier is implemented by connections that can signal a drop
// without waiting for the next liveness poll.
type DisconnectNotifier interface {
	Disconnected() <-chan struct{}
}
