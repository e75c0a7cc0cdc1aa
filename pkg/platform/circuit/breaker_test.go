package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// outcome is one recorded call: true for success.
type outcome bool

const (
	ok   outcome = true
	fail outcome = false
)

func record(b *Breaker, calls ...outcome) {
	for _, c := range calls {
		if c {
			b.RecordSuccess()
		} else {
			b.RecordFailure()
		}
	}
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		recovery int
		calls    []outcome
		want     State
	}{
		{"starts closed", 3, 2, nil, StateClosed},
		{"below failure threshold", 3, 2, []outcome{fail, fail}, StateClosed},
		{"opens at failure threshold", 3, 2, []outcome{fail, fail, fail}, StateOpen},
		{"success resets the failure run", 3, 2, []outcome{fail, fail, ok, fail, fail}, StateClosed},
		{"one success is not enough to close", 1, 2, []outcome{fail, ok}, StateOpen},
		{"closes after the success run", 1, 2, []outcome{fail, ok, ok}, StateClosed},
		{"failure restarts the success run", 1, 3, []outcome{fail, ok, ok, fail, ok, ok}, StateOpen},
		{"recovers after a full success run", 1, 3, []outcome{fail, ok, ok, fail, ok, ok, ok}, StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("cache", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.recovery))
			record(b, tt.calls...)
			assert.Equal(t, tt.want, b.State())
			assert.Equal(t, tt.want == StateOpen, b.IsOpen())
		})
	}
}

func TestBreakerReportsChanges(t *testing.T) {
	b := New("cache", WithFailureThreshold(2), WithSuccessThreshold(1))
	assert.Equal(t, "cache", b.Name())

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.Equal(t, StateChange{}, change)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback, "still open")
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.False(t, change.Closed, "already closed")
}

func TestBreakerReset(t *testing.T) {
	b := New("cache", WithFailureThreshold(1))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}

func TestBreakerCooldownLimitsProbes(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("cache", WithFailureThreshold(1), WithCooldown(5*time.Second), WithClock(func() time.Time { return now }))

	assert.True(t, b.ShouldAttempt(), "closed breaker always attempts")

	b.RecordFailure()
	assert.Equal(t, "open", b.State().String())
	assert.False(t, b.ShouldAttempt(), "no probe inside cooldown")

	now = now.Add(6 * time.Second)
	assert.True(t, b.ShouldAttempt(), "one probe after cooldown")
	assert.False(t, b.ShouldAttempt(), "probe consumed")

	now = now.Add(6 * time.Second)
	assert.True(t, b.ShouldAttempt(), "next cooldown allows another probe")
}

func TestBreakerWithoutCooldownAlwaysProbes(t *testing.T) {
	b := New("cache", WithFailureThreshold(1))
	b.RecordFailure()
	assert.True(t, b.ShouldAttempt())
	assert.True(t, b.ShouldAttempt())
}
