package pipeline

import "time"

// breakerState identifies the circuit breaker state.
type breakerState int

const (
	// stateClosed is the normal state where cycles run.
	stateClosed breakerState = iota
	// stateOpen is when the breaker has tripped and cycles are skipped.
	stateOpen
	// stateHalfOpen is when the open duration has passed and the next
	// cycle runs as a probe.
	stateHalfOpen
)

// String returns a string representation of the state.
func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker tracks consecutive cycle-fatal failures and gates cycle execution.
// It is owned by the single pipeline loop and must not be shared across
// goroutines; single ownership makes locking unnecessary.
type breaker struct {
	threshold    int
	openDuration time.Duration

	failures  int
	openUntil time.Time
	probing   bool
}

func newBreaker(threshold int, openDuration time.Duration) *breaker {
	return &breaker{
		threshold:    threshold,
		openDuration: openDuration,
	}
}

// state reports the breaker state at the given instant.
func (b *breaker) state(now time.Time) breakerState {
	if b.openUntil.IsZero() {
		return stateClosed
	}
	if now.Before(b.openUntil) {
		return stateOpen
	}
	return stateHalfOpen
}

// allow reports whether a cycle may run now. Transitioning from open to
// half-open clears the failure count and marks the next cycle as a probe;
// a probe failure reopens immediately regardless of the threshold.
func (b *breaker) allow(now time.Time) bool {
	if b.openUntil.IsZero() {
		return true
	}
	if now.Before(b.openUntil) {
		return false
	}
	b.openUntil = time.Time{}
	b.failures = 0
	b.probing = true
	return true
}

// recordFailure counts a cycle-fatal failure and opens the breaker when the
// threshold is reached, or immediately during a half-open probe.
func (b *breaker) recordFailure(now time.Time) {
	b.failures++
	if b.probing || b.failures >= b.threshold {
		b.openUntil = now.Add(b.openDuration)
	}
	b.probing = false
}

// recordSuccess resets the breaker after a fully successful cycle.
func (b *breaker) recordSuccess() {
	b.failures = 0
	b.openUntil = time.Time{}
	b.probing = false
}

// remaining returns how long the breaker stays open from the given instant.
func (b *breaker) remaining(now time.Time) time.Duration {
	if b.openUntil.IsZero() || !now.Before(b.openUntil) {
		return 0
	}
	return b.openUntil.Sub(now)
}
