package heartrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReturnsSecondByte(t *testing.T) {
	for v := 0; v <= 0xFF; v++ {
		for _, flags := range []byte{0x00, 0x01, 0x16, 0xFF} {
			got, err := Decode([]byte{flags, byte(v), 0xAA, 0xBB})
			require.NoError(t, err)
			require.Equal(t, Sample(v), got)
		}
	}
}

func TestDecodeShortPayload(t *testing.T) {
	for _, p := range [][]byte{nil, {}, {0x00}} {
		_, err := Decode(p)
		require.ErrorIs(t, err, ErrMalformedPayload)
	}
}

func TestParseMeasurementUint8(t *testing.T) {
	m, err := ParseMeasurement([]byte{0x06, 72})
	require.NoError(t, err)
	assert.Equal(t, Sample(72), m.BPM)
	assert.Equal(t, ContactDetected, m.Contact)
	assert.False(t, m.HasEnergy)
	assert.Empty(t, m.RR)
}

func TestParseMeasurementUint16EnergyRR(t *testing.T) {
	payload := []byte{
		flagValueUint16 | flagContactSupport | flagEnergy | flagRR,
		0x2C, 0x01, // 300
		0x10, 0x00, // 16 kJ
		0x00, 0x04, // 1024
		0x00, 0x02, // 512
	}
	m, err := ParseMeasurement(payload)
	require.NoError(t, err)
	assert.Equal(t, Sample(300), m.BPM)
	assert.Equal(t, ContactLost, m.Contact)
	assert.True(t, m.HasEnergy)
	assert.Equal(t, uint16(16), m.Energy)
	assert.Equal(t, []uint16{1024, 512}, m.RR)
}

func TestParseMeasurementTruncated(t *testing.T) {
	_, err := ParseMeasurement([]byte{flagValueUint16, 0x2C})
	require.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParseMeasurement([]byte{flagEnergy, 60, 0x01})
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecoderProfiles(t *testing.T) {
	basic, err := Decoder("basic")
	require.NoError(t, err)
	full, err := Decoder("full")
	require.NoError(t, err)

	p := []byte{flagValueUint16, 0x2C, 0x01}
	v, err := basic(p)
	require.NoError(t, err)
	assert.Equal(t, Sample(0x2C), v)

	v, err = full(p)
	require.NoError(t, err)
	assert.Equal(t, Sample(300), v)

	_, err = Decoder("fancy")
	require.Error(t, err)
}
