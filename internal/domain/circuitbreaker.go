package domain

import (
	"encoding/json"
	"time"
)

// APICircuitBreaker tracks exchange-adapter failures in a rolling window
// and trips for a cooldown period once the failure count reaches a
// threshold. This is
// distinct from sony/gobreaker's transport-level breaker wrapping
// individual HTTP calls: this one is the business-level gate consulted
// once per cycle by the risk controller.
type APICircuitBreaker struct {
	failures     []time.Time
	Tripped      bool
	CooldownUntil time.Time
}

// RecordFailure appends a failure timestamp and evaluates whether the
// breaker should trip, given the configured window and error threshold.
func (b *APICircuitBreaker) RecordFailure(now time.Time, windowSeconds int, maxErrors int, cooldownSeconds int) {
	b.failures = append(b.failures, now)
	b.prune(now, windowSeconds)
	if len(b.failures) >= maxErrors {
		b.Tripped = true
		b.CooldownUntil = now.Add(time.Duration(cooldownSeconds) * time.Second)
	}
}

// RecordSuccess clears the tripped flag and the failure window once the
// breaker is tripped and its cooldown has elapsed; otherwise it does nothing.
func (b *APICircuitBreaker) RecordSuccess(now time.Time) {
	if b.Tripped && !now.Before(b.CooldownUntil) {
		b.Tripped = false
		b.failures = nil
	}
}

// Open reports whether the breaker currently blocks new-order placement.
// Reduce-only exits and cancels remain permitted by callers regardless.
func (b APICircuitBreaker) Open(now time.Time) bool {
	return b.Tripped && now.Before(b.CooldownUntil)
}

func (b *APICircuitBreaker) prune(now time.Time, windowSeconds int) {
	cutoff := now.Add(-time.Duration(windowSeconds) * time.Second)
	i := 0
	for ; i < len(b.failures); i++ {
		if !b.failures[i].Before(cutoff) {
			break
		}
	}
	b.failures = b.failures[i:]
}

// FailureCount returns the number of failures currently inside the
// rolling window, for metrics export.
func (b APICircuitBreaker) FailureCount() int {
	return len(b.failures)
}

type circuitBreakerJSON struct {
	Failures      []time.Time `json:"failures"`
	Tripped       bool        `json:"tripped"`
	CooldownUntil time.Time   `json:"cooldown_until"`
}

// MarshalJSON exposes the unexported failure window so the state store
// round-trips the breaker faithfully across restarts.
func (b APICircuitBreaker) MarshalJSON() ([]byte, error) {
	return json.Marshal(circuitBreakerJSON{
		Failures:      b.failures,
		Tripped:       b.Tripped,
		CooldownUntil: b.CooldownUntil,
	})
}

func (b *APICircuitBreaker) UnmarshalJSON(data []byte) error {
	var aux circuitBreakerJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.failures = aux.Failures
	b.Tripped = aux.Tripped
	b.CooldownUntil = aux.CooldownUntil
	return nil
}
