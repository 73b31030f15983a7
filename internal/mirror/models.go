package mirror

import "time"

// Telemetry is published to <topic>/telemetry when the store changes.
type Telemetry struct {
	BPM       *uint16   `json:"bpm"`
	History   []uint16  `json:"history"`
	Connected bool      `json:"connected"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// LinkEvent is published, retained, to <topic>/link on every transition.
type LinkEvent struct {
	State     string    `json:"state"`
	Attempt   int       `json:"attempt,omitempty"`
	DelayMs   int64     `json:"delay_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
	Session   string    `json:"session,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
