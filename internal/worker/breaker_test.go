package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	b := newCircuitBreaker(2, time.Hour)
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	b := newCircuitBreaker(2, time.Hour)
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.True(t, b.Allow())
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := newCircuitBreaker(1, 10*time.Millisecond)
	b.RecordFailure()
	assert.False(t, b.Allow())
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow(), "should allow a trial call after cooldown")
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := newCircuitBreaker(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())
}
