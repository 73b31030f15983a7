package link

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a session ended.
type FailureKind uint8

const (
	ConnectFailure FailureKind = iota + 1
	SubscribeFailure
	LinkLost
)

func (k FailureKind) String() string {
	switch k {
	case ConnectFailure:
		return "connect failure"
	case SubscribeFailure:
		return "subscribe failure"
	case LinkLost:
		return "link lost"
	default:
		return "unknown failure"
	}
}

// ErrNotAlive is reported when the liveness poll finds the connection gone.
var ErrNotAlive = errors.New("link: connection not alive")

// ErrPeerDisconnected is reported when the transport signals a disconnect.
var ErrPeerDisconnected = errors.New("link: peer disconnected")

// LinkError is every session failure. None of them are fatal.
type LinkError struct {
	Kind FailureKind
	Err  error
}

func (e *LinkError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, or 0 if err is not a LinkError.
func KindOf(err error) FailureKind {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}
