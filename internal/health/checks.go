// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/camcore/internal/recording"
)

// FrameClock reports when the latest video frame arrived.
type FrameClock interface {
	LastPublished() time.Time
}

type frameFreshness struct {
	frames FrameClock
	maxAge time.Duration
	now    func() time.Time
}

// FrameFreshness is unhealthy until the first frame arrives and whenever the
// latest frame is older than maxAge.
func FrameFreshness(frames FrameClock, maxAge time.Duration) Checker {
	return &frameFreshness{frames: frames, maxAge: maxAge, now: time.Now}
}

func (c *frameFreshness) Name() string { return "frames" }

func (c *frameFreshness) Check(context.Context) CheckResult {
	last := c.frames.LastPublished()
	if last.IsZero() {
		return CheckResult{Status: StatusUnhealthy, Message: "no video frame received yet"}
	}
	if age := c.now().Sub(last); age > c.maxAge {
		return CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf("latest frame is %s old", age.Round(time.Millisecond))}
	}
	return CheckResult{Status: StatusHealthy}
}

// SessionSource exposes the current recording session.
type SessionSource interface {
	Recording() *recording.Session
}

type recordingCheck struct {
	sessions SessionSource
}

// Recording is degraded while the current session has failed.
func Recording(sessions SessionSource) Checker {
	return &recordingCheck{sessions: sessions}
}

func (c *recordingCheck) Name() string { return "recording" }

func (c *recordingCheck) Check(context.Context) CheckResult {
	s := c.sessions.Recording()
	if s == nil {
		return CheckResult{Status: StatusHealthy, Message: "idle"}
	}
	if s.State() == recording.StateFailed {
		res := CheckResult{Status: StatusDegraded, Message: "session " + s.ID() + " failed"}
		if err := s.Failure(); err != nil {
			res.Error = err.Error()
		}
		return res
	}
	return CheckResult{Status: StatusHealthy, Message: string(s.State())}
}

type writableDir struct {
	path string
}

// WritableDir is unhealthy when path is missing, not a directory or not
// writable.
func WritableDir(path string) Checker {
	return &writableDir{path: path}
}

func (c *writableDir) Name() string { return "recording_dir" }

func (c *writableDir) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: "recording directory unavailable", Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Message: "recording path is not a directory"}
	}
	probe, err := os.CreateTemp(c.path, ".write_test-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: "recording directory is not writable", Error: err.Error()}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(filepath.Clean(name))
	return CheckResult{Status: StatusHealthy}
}
