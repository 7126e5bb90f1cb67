package pipeline

import (
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	now := time.Now()
	b := newBreaker(3, time.Minute)

	if !b.allow(now) {
		t.Fatal("new breaker should allow cycles")
	}

	b.recordFailure(now)
	b.recordFailure(now)
	if !b.allow(now) {
		t.Fatal("breaker should stay closed below threshold")
	}
	if got := b.state(now); got != stateClosed {
		t.Fatalf("expected closed, got %s", got)
	}

	b.recordFailure(now)
	if b.allow(now) {
		t.Fatal("breaker should open at threshold")
	}
	if got := b.state(now); got != stateOpen {
		t.Fatalf("expected open, got %s", got)
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := newBreaker(2, time.Minute)

	b.recordFailure(now)
	b.recordFailure(now)
	if b.allow(now) {
		t.Fatal("breaker should be open")
	}

	// Before the open duration passes, cycles stay skipped.
	if b.allow(now.Add(30 * time.Second)) {
		t.Fatal("breaker should still be open before the open duration passes")
	}

	// After it passes, one probe cycle is allowed with counters cleared.
	probeTime := now.Add(61 * time.Second)
	if got := b.state(probeTime); got != stateHalfOpen {
		t.Fatalf("expected half-open, got %s", got)
	}
	if !b.allow(probeTime) {
		t.Fatal("breaker should allow a probe cycle after the open duration")
	}
	if b.failures != 0 {
		t.Fatalf("probe should clear failures, got %d", b.failures)
	}

	// A probe failure reopens immediately, below the threshold.
	b.recordFailure(probeTime)
	if b.allow(probeTime) {
		t.Fatal("failed probe should reopen the breaker immediately")
	}
}

func TestBreakerSuccessResets(t *testing.T) {
	now := time.Now()
	b := newBreaker(2, time.Minute)

	b.recordFailure(now)
	b.recordSuccess()

	if b.failures != 0 {
		t.Fatalf("success should reset failures, got %d", b.failures)
	}

	b.recordFailure(now)
	if b.allow(now) != true {
		t.Fatal("a single failure after reset should not open the breaker")
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	now := time.Now()
	b := newBreaker(1, time.Minute)

	b.recordFailure(now)
	probeTime := now.Add(2 * time.Minute)
	if !b.allow(probeTime) {
		t.Fatal("probe should be allowed")
	}

	b.recordSuccess()
	if got := b.state(probeTime); got != stateClosed {
		t.Fatalf("expected closed after successful probe, got %s", got)
	}
	if b.failures != 0 {
		t.Fatalf("expected zero failures, got %d", b.failures)
	}
}
