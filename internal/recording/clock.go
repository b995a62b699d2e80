// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recording

import (
	"time"

	"github.com/ManuGH/camcore/internal/media"
)

// Verdict is the clock's decision about one sample.
type Verdict int

const (
	VerdictAccepted Verdict = iota + 1
	VerdictSuppressed
	VerdictAwaitingVideo
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictSuppressed:
		return "suppressed"
	case VerdictAwaitingVideo:
		return "awaiting_video"
	default:
		return "unknown"
	}
}

// ClockResult is returned by Clock.Accept.
type ClockResult struct {
	Verdict Verdict
	// Output is the write-clock timestamp of the sample start.
	Output time.Duration
	// End is the write-clock timestamp the stream has reached after this
	// sample. It differs from Output only for audio buffers with a duration.
	End time.Duration
	// StartSession is set on the first video sample; Origin carries its raw timestamp.
	StartSession bool
	Origin       time.Duration
}

type streamClock struct {
	last         time.Duration
	offset       time.Duration
	disconnected bool
}

// Clock rebases raw capture timestamps onto a continuous write clock that
// excludes the time spent paused or disconnected. Each stream keeps its own
// offset; offsets only grow.
//
// Clock is not safe for concurrent use; Session serializes access.
type Clock struct {
	started bool
	origin  time.Duration
	video   streamClock
	audio   streamClock
}

func (c *Clock) stream(s media.Stream) *streamClock {
	if s == media.StreamAudio {
		return &c.audio
	}
	return &c.video
}

// Accept decides the fate of one sample and, when accepted, its output time.
func (c *Clock) Accept(stream media.Stream, raw, duration time.Duration) ClockResult {
	var res ClockResult

	if !c.started {
		if stream != media.StreamVideo {
			return ClockResult{Verdict: VerdictAwaitingVideo}
		}
		c.started = true
		c.origin = raw
		c.video.last = raw
		c.audio.last = raw
		res.StartSession = true
		res.Origin = raw
	}

	tracked := raw
	if stream == media.StreamAudio && duration > 0 {
		tracked = raw + duration
	}

	sc := c.stream(stream)
	if sc.disconnected {
		gap := tracked - sc.last
		if sc.offset == 0 {
			sc.offset = gap
		} else {
			sc.offset += gap
		}
		sc.disconnected = false
		res.Verdict = VerdictSuppressed
		return res
	}

	sc.last = tracked
	res.Verdict = VerdictAccepted
	res.Output = raw - sc.offset
	res.End = tracked - sc.offset
	return res
}

// MarkDisconnected flags a stream so that its next sample only measures the gap.
func (c *Clock) MarkDisconnected(stream media.Stream) {
	c.stream(stream).disconnected = true
}

// Offset reports the accumulated offset of a stream.
func (c *Clock) Offset(stream media.Stream) time.Duration {
	return c.stream(stream).offset
}

// Started reports whether the first video sample has been seen.
func (c *Clock) Started() bool { return c.started }

// Origin is the raw timestamp of the first video sample.
func (c *Clock) Origin() time.Duration { return c.origin }

// Reset returns the clock to its initial state. Only used when a session starts.
func (c *Clock) Reset() {
	*c = Clock{}
}
