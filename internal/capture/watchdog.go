// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camcore/internal/log"
)

type WatchdogState int

const (
	WatchdogStarting WatchdogState = iota
	WatchdogRunning
	WatchdogStalled
)

func (s WatchdogState) String() string {
	switch s {
	case WatchdogStarting:
		return "starting"
	case WatchdogRunning:
		return "running"
	case WatchdogStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// FrameClock reports when the latest video frame arrived.
type FrameClock interface {
	LastPublished() time.Time
}

// Reporter receives watchdog alarms. Controller.ReportError fits.
type Reporter func(source, message string)

// Watchdog watches video frame arrival. It reports once when the first frame
// does not show up within the start timeout and once per stall, and logs the
// recovery when frames resume.
type Watchdog struct {
	mu sync.Mutex

	frames       FrameClock
	report       Reporter
	startTimeout time.Duration
	stallTimeout time.Duration
	interval     time.Duration

	state   WatchdogState
	started time.Time

	clock  clock
	logger zerolog.Logger
}

func NewWatchdog(frames FrameClock, report Reporter, startTimeout, stallTimeout time.Duration) *Watchdog {
	interval := stallTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return &Watchdog{
		frames:       frames,
		report:       report,
		startTimeout: startTimeout,
		stallTimeout: stallTimeout,
		interval:     interval,
		clock:        realClock{},
		logger:       log.WithComponent("watchdog"),
	}
}

// Run checks frame arrival until ctx ends.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	w.started = w.clock.Now()
	w.state = WatchdogStarting
	w.mu.Unlock()

	t := w.clock.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			w.check()
		}
	}
}

func (w *Watchdog) check() {
	last := w.frames.LastPublished()

	w.mu.Lock()
	now := w.clock.Now()
	var alarm string
	switch w.state {
	case WatchdogStarting:
		switch {
		case !last.IsZero():
			w.state = WatchdogRunning
		case now.Sub(w.started) > w.startTimeout:
			w.state = WatchdogStalled
			alarm = fmt.Sprintf("no video frame within %s of start", w.startTimeout)
		}
	case WatchdogRunning:
		if age := now.Sub(last); age > w.stallTimeout {
			w.state = WatchdogStalled
			alarm = fmt.Sprintf("video stalled, last frame %s ago", age.Round(time.Millisecond))
		}
	case WatchdogStalled:
		if !last.IsZero() && now.Sub(last) <= w.stallTimeout {
			w.state = WatchdogRunning
			w.logger.Info().Str(log.FieldEvent, "watchdog.recovered").Msg("video frames resumed")
		}
	}
	w.mu.Unlock()

	if alarm != "" {
		w.logger.Warn().Str(log.FieldEvent, "watchdog.stalled").Msg(alarm)
		if w.report != nil {
			w.report("watchdog", alarm)
		}
	}
}

// State returns current watchdog state.
func (w *Watchdog) State() WatchdogState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
