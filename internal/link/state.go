package link

import "time"

// State is the position of the manager in the connection lifecycle.
type State uint8

const (
	Disconnected State = iota
	Scanning
	Connecting
	Subscribed
	Retrying
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Retrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// Status is a State plus the details that go with it.
type Status struct {
	State State

	// Delay is the wait before the next attempt; set only while Retrying.
	Delay time.Duration

	// Attempt counts consecutive failed attempts since the last subscription.
	Attempt int

	// Err is the failure that caused the current Retrying state.
	Err error

	// Session identifies the connection attempt in logs and mirrors.
	Session string

	Since time.Time
}
