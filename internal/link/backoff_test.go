package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedBackoff(t *testing.T) {
	b := FixedBackoff(5 * time.Second)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 5*time.Second, b.Delay(i))
	}
}

func TestExponentialBackoffCaps(t *testing.T) {
	b := ExponentialBackoff(time.Second, 30*time.Second, 0)
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30}
	for i, w := range want {
		assert.Equal(t, w*time.Second, b.Delay(i), "attempt %d", i)
	}
	assert.Equal(t, 30*time.Second, b.Delay(1000))
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := ExponentialBackoff(time.Second, 8*time.Second, 0.5)
	b.rand = func() float64 { return 1 }
	assert.Equal(t, 4*time.Second, b.Delay(3))
	b.rand = func() float64 { return 0 }
	assert.Equal(t, 8*time.Second, b.Delay(3))

	b.rand = nil
	for i := 0; i < 100; i++ {
		d := b.Delay(2)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 4*time.Second)
	}
}

func TestZeroBackoff(t *testing.T) {
	assert.Zero(t, Backoff{}.Delay(4))
	assert.Equal(t, time.Second, FixedBackoff(time.Second).Delay(-1))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "retrying", Retrying.String())
	assert.Equal(t, "scanning", Scanning.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "link lost", LinkLost.String())
	assert.Equal(t, "connect failure: boom", (&LinkError{Kind: ConnectFailure, Err: errString("boom")}).Error())
}

type errString string

func (e errString) Error() string { return string(e) }
