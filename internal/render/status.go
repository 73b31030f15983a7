package render

import (
	"pulse/internal/heartrate"
	"pulse/internal/telemetry"
)

const (
	StatusDisconnected = "disconnected"
	StatusAwaiting     = "awaiting data"
	StatusLow          = "low"
	StatusNormal       = "normal"
	StatusLight        = "light activity"
	StatusModerate     = "moderate exercise"
	StatusHigh         = "high intensity"
)

// Classify labels a snapshot. The first matching rule wins.
func Classify(s telemetry.Snapshot) string {
	return ClassifyValue(s.Connected, s.HasLatest, s.Latest)
}

func ClassifyValue(connected, hasLatest bool, v heartrate.Sample) string {
	switch {
	case !connected:
		return StatusDisconnected
	case !hasLatest:
		return StatusAwaiting
	case v < 60:
		return StatusLow
	case v <= 100:
		return StatusNormal
	case v <= 120:
		return StatusLight
	case v <= 150:
		return StatusModerate
	default:
		return StatusHigh
	}
}
