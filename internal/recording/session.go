// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package recording turns the interleaved capture streams into a paused,
// resumed and failure-aware sequence of writes on a media Writer.
package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/camcore/internal/bus"
	"github.com/ManuGH/camcore/internal/log"
	"github.com/ManuGH/camcore/internal/media"
	"github.com/ManuGH/camcore/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome is the fate of one sample handed to OnSample.
type Outcome int

const (
	OutcomeWritten Outcome = iota + 1
	OutcomeNotReady
	OutcomeSuppressed
	OutcomeAwaitingVideo
	OutcomeIgnored
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeAwaitingVideo:
		return "awaiting_video"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is one recording from Start to Stop. All methods are safe for
// concurrent use; the lock is held only for clock math and the non-blocking
// writer calls.
type Session struct {
	id     string
	writer Writer
	pub    bus.Publisher
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	clock    Clock
	failure  error
	position time.Duration
}

// Option customizes a Session.
type Option func(*Session)

// WithPublisher sets where state changes and failures are announced.
func WithPublisher(p bus.Publisher) Option {
	return func(s *Session) {
		if p != nil {
			s.pub = p
		}
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession returns an idle session feeding w.
func NewSession(w Writer, opts ...Option) (*Session, error) {
	if w == nil {
		return nil, ErrNoWriter
	}
	s := &Session{
		id:     uuid.NewString(),
		writer: w,
		pub:    bus.Discard,
		now:    time.Now,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.WithComponent("recording").With().Str(log.FieldSessionID, s.id).Logger()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position is how far the written media reaches past the write-clock origin.
// Audio buffers count to their end.
func (s *Session) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Failure returns the writer error that failed the session, if any.
func (s *Session) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Start moves idle to recording. The write-clock origin is set later by the
// first video sample.
func (s *Session) Start() error {
	s.mu.Lock()
	ev, err := s.applyLocked(EvStart)
	if err == nil {
		s.clock.Reset()
	}
	s.mu.Unlock()
	s.announce(ev)
	return err
}

// Pause stops writing and marks both streams disconnected so the gap is
// measured when capture resumes.
func (s *Session) Pause() error {
	s.mu.Lock()
	ev, err := s.applyLocked(EvPause)
	if err == nil {
		s.clock.MarkDisconnected(media.StreamVideo)
		s.clock.MarkDisconnected(media.StreamAudio)
	}
	s.mu.Unlock()
	s.announce(ev)
	return err
}

// Resume moves paused back to recording.
func (s *Session) Resume() error {
	s.mu.Lock()
	ev, err := s.applyLocked(EvResume)
	s.mu.Unlock()
	s.announce(ev)
	return err
}

// Stop moves the session to stopped and finishes the writer.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	ev, err := s.applyLocked(EvStop)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.announce(ev)

	if err := s.writer.Finish(ctx); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldEvent, "recording.finish_failed").Msg("writer finish failed")
		return fmt.Errorf("recording: finish writer: %w", err)
	}
	s.logger.Info().Str(log.FieldEvent, "recording.stopped").Msg("recording stopped")
	return nil
}

// StreamDisconnected marks one stream as interrupted by the capture source.
// The next sample of that stream measures the gap instead of being written.
func (s *Session) StreamDisconnected(stream media.Stream) {
	s.mu.Lock()
	s.clock.MarkDisconnected(stream)
	s.mu.Unlock()
}

// OnSample routes one sample through the clock to the writer. It never blocks
// on the writer: a writer that is not ready costs the sample.
func (s *Session) OnSample(f media.Frame) Outcome {
	out, ev, failure := s.onSample(f)
	metrics.IncRecordingSample(f.Stream.String(), out.String())
	if failure != nil {
		s.announce(ev)
		s.reportFailure(failure)
	}
	return out
}

func (s *Session) onSample(f media.Frame) (Outcome, *bus.RecordingStateEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRecording:
	case StateFailed:
		return OutcomeFailed, nil, nil
	default:
		return OutcomeIgnored, nil, nil
	}
	if !f.Ready {
		return OutcomeIgnored, nil, nil
	}

	if err := s.writer.Err(); err != nil {
		return s.failLocked(err)
	}

	res := s.clock.Accept(f.Stream, f.PTS, f.Duration)
	if res.StartSession {
		s.writer.StartSession(res.Origin)
		s.logger.Info().
			Str(log.FieldEvent, "recording.session_started").
			Dur(log.FieldPTS, res.Origin).
			Msg("write clock anchored on first video sample")
	}
	switch res.Verdict {
	case VerdictAwaitingVideo:
		return OutcomeAwaitingVideo, nil, nil
	case VerdictSuppressed:
		metrics.SetRecordingOffset(f.Stream.String(), s.clock.Offset(f.Stream).Seconds())
		s.logger.Debug().
			Str(log.FieldEvent, "recording.gap_measured").
			Str(log.FieldStream, f.Stream.String()).
			Dur("offset", s.clock.Offset(f.Stream)).
			Msg("stream offset updated")
		return OutcomeSuppressed, nil, nil
	}

	if !s.writer.Ready(f.Stream) {
		return OutcomeNotReady, nil, nil
	}
	status, err := s.writer.Append(f, res.Output)
	switch {
	case err != nil:
		return s.failLocked(err)
	case status == AppendFailed:
		if werr := s.writer.Err(); werr != nil {
			return s.failLocked(werr)
		}
		return s.failLocked(ErrWriterFailed)
	case status == AppendNotReady:
		return OutcomeNotReady, nil, nil
	}
	if p := res.End - s.clock.Origin(); p > s.position {
		s.position = p
	}
	return OutcomeWritten, nil, nil
}

func (s *Session) failLocked(cause error) (Outcome, *bus.RecordingStateEvent, error) {
	ev, err := s.applyLocked(EvWriterFailed)
	if err != nil {
		return OutcomeFailed, nil, nil
	}
	s.failure = cause
	return OutcomeFailed, ev, cause
}

func (s *Session) applyLocked(kind EventKind) (*bus.RecordingStateEvent, error) {
	tr, ok := TransitionFor(s.state, kind)
	if !ok {
		return nil, illegalTransition(s.state, kind)
	}
	s.state = tr.To
	metrics.IncRecordingTransition(string(tr.From), string(tr.To))
	return &bus.RecordingStateEvent{
		SessionID: s.id,
		From:      string(tr.From),
		To:        string(tr.To),
		At:        s.now(),
	}, nil
}

func (s *Session) announce(ev *bus.RecordingStateEvent) {
	if ev == nil {
		return
	}
	s.logger.Debug().
		Str(log.FieldEvent, "recording.transition").
		Str(log.FieldOldState, ev.From).
		Str(log.FieldNewState, ev.To).
		Msg("recording state changed")
	_ = s.pub.Publish(context.Background(), bus.TopicRecordingState, *ev)
}

func (s *Session) reportFailure(cause error) {
	metrics.IncRecordingFailure()
	s.logger.Error().Err(cause).Str(log.FieldEvent, "recording.failed").Msg("recording failed")
	_ = s.pub.Publish(context.Background(), bus.TopicCameraError, bus.ErrorEvent{
		Source:    "recording",
		Message:   cause.Error(),
		SessionID: s.id,
		At:        s.now(),
	})
}
