// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package throttle bounds the number of image-stream frames in flight to a
// slow consumer.
package throttle

import (
	"sync"

	"github.com/ManuGH/camcore/internal/metrics"
)

// DefaultCeiling is the in-flight limit used when none is configured.
const DefaultCeiling = 4

// Admission is the explicit result of an admission attempt.
type Admission int

const (
	Admitted Admission = iota + 1
	Dropped
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Throttle is a counter with a fixed ceiling.
type Throttle struct {
	mu      sync.Mutex
	pending int
	ceiling int
	dropped uint64
}

// New returns a throttle admitting at most ceiling frames at once. A
// non-positive ceiling selects DefaultCeiling.
func New(ceiling int) *Throttle {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Throttle{ceiling: ceiling}
}

// Admit increments the pending count and reports Admitted iff it was below the ceiling.
func (t *Throttle) Admit() Admission {
	t.mu.Lock()
	if t.pending >= t.ceiling {
		t.dropped++
		t.mu.Unlock()
		metrics.IncFrameDropped("video", "throttled")
		return Dropped
	}
	t.pending++
	n := t.pending
	t.mu.Unlock()

	metrics.SetStreamPending(n)
	return Admitted
}

// TryAdmit is Admit reduced to a boolean.
func (t *Throttle) TryAdmit() bool {
	return t.Admit() == Admitted
}

// Release marks one admitted frame as processed by the consumer. Extra
// releases are ignored.
func (t *Throttle) Release() {
	t.mu.Lock()
	if t.pending > 0 {
		t.pending--
	}
	n := t.pending
	t.mu.Unlock()

	metrics.SetStreamPending(n)
}

// Reset clears the pending count, e.g. when the stream consumer goes away.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.pending = 0
	t.mu.Unlock()
	metrics.SetStreamPending(0)
}

// Pending reports the frames currently in flight.
func (t *Throttle) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Ceiling reports the configured limit.
func (t *Throttle) Ceiling() int { return t.ceiling }

// Dropped reports how many admissions were refused.
func (t *Throttle) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}
