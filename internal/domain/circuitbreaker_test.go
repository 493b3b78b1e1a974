package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPICircuitBreaker_TripsAfterThreshold(t *testing.T) {
	var b APICircuitBreaker
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		b.RecordFailure(now.Add(time.Duration(i)*time.Second), 300, 5, 60)
		assert.False(t, b.Open(now))
	}
	b.RecordFailure(now.Add(4*time.Second), 300, 5, 60)
	assert.True(t, b.Open(now.Add(4*time.Second)))
}

func TestAPICircuitBreaker_PrunesOldFailuresOutsideWindow(t *testing.T) {
	var b APICircuitBreaker
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		b.RecordFailure(base.Add(time.Duration(i)*time.Second), 300, 5, 60)
	}
	// Fifth failure arrives well outside the 300s window: the earlier four
	// should have been pruned, so the breaker should not trip yet.
	b.RecordFailure(base.Add(400*time.Second), 300, 5, 60)
	assert.False(t, b.Open(base.Add(400*time.Second)))
	assert.Equal(t, 1, b.FailureCount())
}

func TestAPICircuitBreaker_ResetsAfterCooldownOnSuccess(t *testing.T) {
	var b APICircuitBreaker
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		b.RecordFailure(base.Add(time.Duration(i)*time.Second), 300, 5, 60)
	}
	assert.True(t, b.Open(base.Add(5*time.Second)))

	// A success call during the cooldown should not reset it.
	b.RecordSuccess(base.Add(10 * time.Second))
	assert.True(t, b.Open(base.Add(10 * time.Second)))

	// Once the cooldown elapses, a success call clears the trip.
	afterCooldown := b.CooldownUntil.Add(time.Second)
	b.RecordSuccess(afterCooldown)
	assert.False(t, b.Open(afterCooldown))
	assert.Equal(t, 0, b.FailureCount())
}

func TestAPICircuitBreaker_JSONRoundTrip(t *testing.T) {
	var b APICircuitBreaker
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.RecordFailure(base, 300, 5, 60)
	b.RecordFailure(base.Add(time.Second), 300, 5, 60)

	data, err := json.Marshal(b)
	assert.NoError(t, err)

	var restored APICircuitBreaker
	assert.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, b.Tripped, restored.Tripped)
	assert.Equal(t, b.FailureCount(), restored.FailureCount())
}
