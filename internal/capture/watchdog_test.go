// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	mu           sync.Mutex
	now          time.Time
	latestTicker *mockTicker
}

func (m *mockClock) Now() time.Time { m.mu.Lock(); defer m.mu.Unlock(); return m.now }
func (m *mockClock) NewTicker(time.Duration) ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestTicker = &mockTicker{c: make(chan time.Time)}
	return m.latestTicker
}

func (m *mockClock) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

type mockTicker struct {
	c chan time.Time
}

func (m *mockTicker) C() <-chan time.Time { return m.c }
func (m *mockTicker) Stop()               {}

type mockFrames struct {
	mu   sync.Mutex
	last time.Time
}

func (m *mockFrames) LastPublished() time.Time { m.mu.Lock(); defer m.mu.Unlock(); return m.last }
func (m *mockFrames) set(t time.Time)          { m.mu.Lock(); m.last = t; m.mu.Unlock() }

type alarms struct {
	mu   sync.Mutex
	msgs []string
}

func (a *alarms) report(_, msg string) { a.mu.Lock(); a.msgs = append(a.msgs, msg); a.mu.Unlock() }
func (a *alarms) count() int           { a.mu.Lock(); defer a.mu.Unlock(); return len(a.msgs) }

func newTestWatchdog() (*Watchdog, *mockClock, *mockFrames, *alarms) {
	clk := &mockClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	frames := &mockFrames{}
	a := &alarms{}
	w := NewWatchdog(frames, a.report, 2*time.Second, time.Second)
	w.clock = clk
	w.started = clk.Now()
	return w, clk, frames, a
}

func TestWatchdogStartTimeout(t *testing.T) {
	w, clk, _, a := newTestWatchdog()

	clk.advance(time.Second)
	w.check()
	assert.Equal(t, WatchdogStarting, w.State())
	assert.Zero(t, a.count())

	clk.advance(2 * time.Second)
	w.check()
	assert.Equal(t, WatchdogStalled, w.State())
	require.Equal(t, 1, a.count())
	assert.Contains(t, a.msgs[0], "no video frame")

	w.check()
	assert.Equal(t, 1, a.count(), "one alarm per stall")
}

func TestWatchdogStallAndRecovery(t *testing.T) {
	w, clk, frames, a := newTestWatchdog()

	frames.set(clk.Now())
	w.check()
	assert.Equal(t, WatchdogRunning, w.State())

	clk.advance(1500 * time.Millisecond)
	w.check()
	assert.Equal(t, WatchdogStalled, w.State())
	require.Equal(t, 1, a.count())
	assert.Contains(t, a.msgs[0], "1.5s")

	frames.set(clk.Now())
	w.check()
	assert.Equal(t, WatchdogRunning, w.State())

	clk.advance(3 * time.Second)
	w.check()
	assert.Equal(t, 2, a.count())
}

func TestWatchdogRunUsesTicker(t *testing.T) {
	w, clk, frames, _ := newTestWatchdog()
	frames.set(clk.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var tk *mockTicker
	require.Eventually(t, func() bool {
		clk.mu.Lock()
		defer clk.mu.Unlock()
		tk = clk.latestTicker
		return tk != nil
	}, time.Second, time.Millisecond)

	tk.c <- clk.Now()
	require.Eventually(t, func() bool { return w.State() == WatchdogRunning }, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
