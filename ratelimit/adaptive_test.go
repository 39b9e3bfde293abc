package ratelimit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentforge/agentforge/ratelimit"
)

func TestBackoffFloorsAtMin(t *testing.T) {
	a := ratelimit.NewAdaptive(ratelimit.Options{InitialPerSecond: 4, MinPerSecond: 1, MaxPerSecond: 10})
	for i := 0; i < 10; i++ {
		a.Backoff(0.5)
	}
	assert.Equal(t, 1.0, a.CurrentRate())
}

func TestRecoverCapsAtMax(t *testing.T) {
	a := ratelimit.NewAdaptive(ratelimit.Options{InitialPerSecond: 9, MaxPerSecond: 10, RecoveryRate: 5})
	a.Recover()
	a.Recover()
	assert.Equal(t, 10.0, a.CurrentRate())
}

func TestBackoffInvokesCallback(t *testing.T) {
	var got float64
	a := ratelimit.NewAdaptive(ratelimit.Options{InitialPerSecond: 4, MinPerSecond: 1, OnBackoff: func(r float64) { got = r }})
	a.Backoff(0.5)
	assert.Equal(t, 2.0, got)
}
