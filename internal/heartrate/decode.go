// Package heartrate decodes Heart Rate Measurement notifications (GATT 0x2A37).
package heartrate

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sample is one heart-rate reading in beats per minute.
type Sample uint16

// ErrMalformedPayload is returned for notifications too short to carry a value.
var ErrMalformedPayload = errors.New("heartrate: malformed payload")

// Decode returns byte 1 of a notification as the sample.
//
// Byte 0 is the flags field and is not interpreted; the payload only has to be
// long enough to carry it and an 8-bit value.
func Decode(payload []byte) (Sample, error) {
	if len(payload) < 2 {
		return 0, fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(payload))
	}
	return Sample(payload[1]), nil
}

// Flag bits of the measurement header.
const (
	flagValueUint16    = 1 << 0
	flagContactDetect  = 1 << 1
	flagContactSupport = 1 << 2
	flagEnergy         = 1 << 3
	flagRR             = 1 << 4
)

// Contact is the sensor-contact status reported by the strap.
type Contact uint8

const (
	ContactUnsupported Contact = iota
	ContactLost
	ContactDetected
)

func (c Contact) String() string {
	switch c {
	case ContactLost:
		return "lost"
	case ContactDetected:
		return "detected"
	default:
		return "unsupported"
	}
}

// Measurement is a fully parsed notification.
type Measurement struct {
	BPM     Sample
	Contact Contact

	HasEnergy bool
	Energy    uint16 // kJ

	// RR intervals in units of 1/1024 s, oldest first.
	RR []uint16
}

// ParseMeasurement decodes every field the flags byte announces.
func ParseMeasurement(payload []byte) (Measurement, error) {
	if len(payload) < 2 {
		return Measurement{}, fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(payload))
	}

	flags := payload[0]
	rest := payload[1:]

	var m Measurement
	if flags&flagValueUint16 != 0 {
		if len(rest) < 2 {
			return Measurement{}, fmt.Errorf("%w: truncated uint16 value", ErrMalformedPayload)
		}
		m.BPM = Sample(binary.LittleEndian.Uint16(rest))
		rest = rest[2:]
	} else {
		m.BPM = Sample(rest[0])
		rest = rest[1:]
	}

	if flags&flagContactSupport != 0 {
		m.Contact = ContactLost
		if flags&flagContactDetect != 0 {
			m.Contact = ContactDetected
		}
	}

	if flags&flagEnergy != 0 {
		if len(rest) < 2 {
			return Measurement{}, fmt.Errorf("%w: truncated energy field", ErrMalformedPayload)
		}
		m.HasEnergy = true
		m.Energy = binary.LittleEndian.Uint16(rest)
		rest = rest[2:]
	}

	if flags&flagRR != 0 {
		for len(rest) >= 2 {
			m.RR = append(m.RR, binary.LittleEndian.Uint16(rest))
			rest = rest[2:]
		}
	}
	return m, nil
}

// DecodeFull is a Decode-compatible wrapper around ParseMeasurement.
func DecodeFull(payload []byte) (Sample, error) {
	m, err := ParseMeasurement(payload)
	if err != nil {
		return 0, err
	}
	return m.BPM, nil
}

// DecodeFunc turns a raw notification into a sample.
type DecodeFunc func(payload []byte) (Sample, error)

// Decoder returns the decode function for a profile name ("basic" or "full").
func Decoder(profile string) (DecodeFunc, error) {
	switch profile {
	case "", "basic":
		return Decode, nil
	case "full":
		return DecodeFull, nil
	default:
		return nil, fmt.Errorf("heartrate: unknown decoder profile %q", profile)
	}
}
