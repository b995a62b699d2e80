// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capture is the producer-side fan-out of the camera data path. Every
// frame from the capture source passes through Controller.OnFrame, which feeds
// the frame cache, the throttled image stream and the active recording.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/camcore/internal/bus"
	"github.com/ManuGH/camcore/internal/framecache"
	"github.com/ManuGH/camcore/internal/log"
	"github.com/ManuGH/camcore/internal/media"
	"github.com/ManuGH/camcore/internal/metrics"
	"github.com/ManuGH/camcore/internal/recording"
	"github.com/ManuGH/camcore/internal/throttle"
	"github.com/rs/zerolog"
)

var (
	ErrRecordingActive = errors.New("capture: recording already active")
	ErrNoRecording     = errors.New("capture: no recording")
)

// ExposureSource reports the sensor state attached to streamed frames.
type ExposureSource interface {
	Exposure() media.Exposure
}

type fixedExposure media.Exposure

func (e fixedExposure) Exposure() media.Exposure { return media.Exposure(e) }

// Controller owns the per-camera capture state.
type Controller struct {
	cache    *framecache.Cache
	throttle *throttle.Throttle
	pub      bus.Publisher
	exposure ExposureSource
	logger   zerolog.Logger
	now      func() time.Time

	streaming atomic.Bool

	startMu sync.Mutex // serializes StartRecording
	mu      sync.Mutex
	session *recording.Session
}

// NewController wires a controller. exposure may be nil.
func NewController(cache *framecache.Cache, th *throttle.Throttle, pub bus.Publisher, exposure ExposureSource) *Controller {
	if cache == nil {
		cache = framecache.New()
	}
	if th == nil {
		th = throttle.New(throttle.DefaultCeiling)
	}
	if pub == nil {
		pub = bus.Discard
	}
	if exposure == nil {
		exposure = fixedExposure{}
	}
	return &Controller{
		cache:    cache,
		throttle: th,
		pub:      pub,
		exposure: exposure,
		logger:   log.WithComponent("capture"),
		now:      time.Now,
	}
}

// Frames is the cache the still service peeks at.
func (c *Controller) Frames() *framecache.Cache { return c.cache }

// Throttle exposes the image-stream throttle.
func (c *Controller) Throttle() *throttle.Throttle { return c.throttle }

// OnFrame is the capture callback. It never blocks and never panics on bad
// input: every problem becomes a dropped frame.
func (c *Controller) OnFrame(f media.Frame) {
	stream := f.Stream.String()
	metrics.IncFrameReceived(stream)
	if !f.Ready {
		metrics.IncFrameDropped(stream, "not_ready")
		return
	}

	if f.IsVideo() {
		c.cache.Publish(f)
		if c.streaming.Load() && c.throttle.TryAdmit() {
			payload := media.NewStreamPayload(f, c.exposure.Exposure())
			if err := c.pub.Publish(context.Background(), bus.TopicImageStream, payload); err != nil {
				// nobody will ack this frame
				c.throttle.Release()
				metrics.IncFrameDropped(stream, "undelivered")
			}
		}
	}

	if s := c.Recording(); s != nil {
		s.OnSample(f)
	}
}

// StreamDisconnected forwards a source interruption to the recording clock.
func (c *Controller) StreamDisconnected(stream media.Stream) {
	c.logger.Info().Str(log.FieldEvent, "capture.stream_disconnected").Str(log.FieldStream, stream.String()).Msg("stream disconnected")
	if s := c.Recording(); s != nil {
		s.StreamDisconnected(stream)
	}
}

// StartImageStream begins publishing admitted frames on the image-stream topic.
func (c *Controller) StartImageStream() {
	c.throttle.Reset()
	c.streaming.Store(true)
	c.logger.Info().Str(log.FieldEvent, "capture.stream_started").Int("ceiling", c.throttle.Ceiling()).Msg("image stream started")
}

// StopImageStream stops publishing and forgets frames still in flight.
func (c *Controller) StopImageStream() {
	c.streaming.Store(false)
	c.throttle.Reset()
	c.logger.Info().Str(log.FieldEvent, "capture.stream_stopped").Msg("image stream stopped")
}

// Streaming reports whether the image stream is on.
func (c *Controller) Streaming() bool { return c.streaming.Load() }

// ReceivedImageStreamData acknowledges one streamed frame.
func (c *Controller) ReceivedImageStreamData() {
	c.throttle.Release()
}

// CopyPixelBuffer hands the latest frame to a renderer, emptying the cache.
func (c *Controller) CopyPixelBuffer() (media.Frame, bool) {
	return c.cache.Consume()
}

// Recording returns the current session, if any.
func (c *Controller) Recording() *recording.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StartRecording starts a new session on w. A failed previous session is
// stopped first; any other live session is an error.
func (c *Controller) StartRecording(ctx context.Context, w recording.Writer, opts ...recording.Option) (*recording.Session, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	prev := c.session
	if prev != nil && prev.State() != recording.StateFailed {
		c.mu.Unlock()
		return nil, ErrRecordingActive
	}
	c.session = nil
	c.mu.Unlock()

	if prev != nil {
		if err := prev.Stop(ctx); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldSessionID, prev.ID()).Msg("stopping failed recording")
		}
	}

	s, err := recording.NewSession(w, append([]recording.Option{recording.WithPublisher(c.pub)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	c.logger.Info().Str(log.FieldEvent, "capture.recording_started").Str(log.FieldSessionID, s.ID()).Msg("recording started")
	return s, nil
}

// PauseRecording pauses the current session.
func (c *Controller) PauseRecording() error {
	s := c.Recording()
	if s == nil {
		return ErrNoRecording
	}
	return s.Pause()
}

// ResumeRecording resumes the current session.
func (c *Controller) ResumeRecording() error {
	s := c.Recording()
	if s == nil {
		return ErrNoRecording
	}
	return s.Resume()
}

// StopRecording stops the current session and releases its writer.
func (c *Controller) StopRecording(ctx context.Context) (*recording.Session, error) {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return nil, ErrNoRecording
	}
	if err := s.Stop(ctx); err != nil {
		return s, fmt.Errorf("stop recording %s: %w", s.ID(), err)
	}
	return s, nil
}

// ReportInitialization broadcasts the configured camera state.
func (c *Controller) ReportInitialization(ev bus.InitializedEvent) {
	c.logger.Info().
		Str(log.FieldEvent, "capture.initialized").
		Float64("preview_width", ev.PreviewWidth).
		Float64("preview_height", ev.PreviewHeight).
		Msg("camera initialized")
	_ = c.pub.Publish(context.Background(), bus.TopicCameraInitialized, ev)
}

// ReportError broadcasts an asynchronous camera error.
func (c *Controller) ReportError(source, message string) {
	c.logger.Error().Str(log.FieldEvent, "capture.error").Str("source", source).Msg(message)
	_ = c.pub.Publish(context.Background(), bus.TopicCameraError, bus.ErrorEvent{
		Source:  source,
		Message: message,
		At:      c.now(),
	})
}
