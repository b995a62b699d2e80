// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package still produces composited JPEG stills from the live frame or, when
// none is available, from a dedicated device capture.
package still

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/camcore/internal/log"
	"github.com/ManuGH/camcore/internal/media"
	"github.com/ManuGH/camcore/internal/metrics"
	"github.com/ManuGH/camcore/internal/telemetry"
	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const (
	PathFast     = "fast"
	PathFallback = "fallback"
)

// FrameSource is a non-destructive view of the latest video frame.
type FrameSource interface {
	Peek() (media.Frame, bool)
}

// Device performs a one-shot high-resolution capture returning encoded bytes.
type Device interface {
	CaptureStill(ctx context.Context) ([]byte, error)
}

// Settings tune acquisition and encoding. They can be replaced at runtime.
type Settings struct {
	FrameRetries   int
	RetryDelay     time.Duration
	CaptureTimeout time.Duration
	JPEGQuality    int
	Workers        int
}

// DefaultSettings returns the built-in tuning.
func DefaultSettings() Settings {
	return Settings{
		FrameRetries:   3,
		RetryDelay:     50 * time.Millisecond,
		CaptureTimeout: 5 * time.Second,
		JPEGQuality:    DefaultJPEGQuality,
		Workers:        2,
	}
}

// Service serves still captures. Compositions are bounded by Settings.Workers
// as given at construction.
type Service struct {
	frames FrameSource
	device Device
	sem    *semaphore.Weighted
	tracer trace.Tracer

	settings   atomic.Pointer[Settings]
	compositor atomic.Pointer[Compositor]

	wg sync.WaitGroup
}

// NewService wires a service. device may be nil, in which case captures fail
// when no live frame shows up.
func NewService(frames FrameSource, device Device, s Settings) *Service {
	if s.Workers <= 0 {
		s.Workers = 1
	}
	svc := &Service{
		frames: frames,
		device: device,
		sem:    semaphore.NewWeighted(int64(s.Workers)),
		tracer: telemetry.Tracer("github.com/ManuGH/camcore/internal/still"),
	}
	svc.Apply(s)
	return svc
}

// Apply replaces the acquisition and encoding settings. The worker bound is
// fixed at construction.
func (s *Service) Apply(next Settings) {
	if next.FrameRetries < 0 {
		next.FrameRetries = 0
	}
	cur := s.settings.Load()
	if cur != nil {
		next.Workers = cur.Workers
	}
	s.settings.Store(&next)
	if c := s.compositor.Load(); c == nil || c.Quality() != next.JPEGQuality {
		s.compositor.Store(NewCompositor(next.JPEGQuality))
	}
}

// Settings returns the settings in effect.
func (s *Service) Settings() Settings { return *s.settings.Load() }

// Capture acquires a source image and composes the still. On failure before
// composition Width and Height are zero.
func (s *Service) Capture(ctx context.Context, opts CaptureOptions) (res Result, err error) {
	start := time.Now()
	path := ""
	defer func() {
		metrics.ObserveStillCapture(labelPath(path), resultLabel(err), time.Since(start))
	}()

	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	ctx, span := s.tracer.Start(ctx, "still.capture", trace.WithAttributes(
		telemetry.StillRequestAttributes(opts.TargetResolution.String(), opts.DeviceRotation(), opts.Overlay != nil)...,
	))
	defer func() {
		span.SetAttributes(telemetry.StillResultAttributes(path, res.Width, res.Height, len(res.Bytes))...)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(telemetry.ErrorAttributes(err, resultLabel(err))...)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer s.sem.Release(1)

	logger := log.WithComponentFromContext(ctx, "still")
	src, path, err := s.acquire(ctx)
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "still.acquire_failed").Str("path", path).Msg("still capture failed")
		return Result{}, err
	}

	res, err = s.compositor.Load().Compose(src, opts)
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "still.compose_failed").Msg("still composition failed")
		return res, err
	}
	logger.Debug().
		Str(log.FieldEvent, "still.captured").
		Str("path", path).
		Int("bytes", len(res.Bytes)).
		Str(log.FieldResolution, fmt.Sprintf("%dx%d", res.Width, res.Height)).
		Msg("still captured")
	return res, nil
}

// CaptureAsync runs Capture in the background and reports through done
// exactly once.
func (s *Service) CaptureAsync(ctx context.Context, opts CaptureOptions, done func(Result, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.Capture(ctx, opts)
		if done != nil {
			done(res, err)
		}
	}()
}

// Wait blocks until all asynchronous captures have reported.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) acquire(ctx context.Context) (image.Image, string, error) {
	cfg := s.Settings()

	img, err := backoff.Retry(ctx, func() (image.Image, error) {
		f, ok := s.frames.Peek()
		if !ok {
			return nil, ErrNoFrame
		}
		img, err := f.Image()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return img, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(cfg.RetryDelay)),
		backoff.WithMaxTries(uint(cfg.FrameRetries+1)),
	)
	if err == nil {
		return img, PathFast, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, PathFast, ctxErr
	}

	if s.device == nil {
		return nil, PathFallback, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	dctx := ctx
	if cfg.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, cfg.CaptureTimeout)
		defer cancel()
	}
	data, err := s.device.CaptureStill(dctx)
	if err != nil {
		return nil, PathFallback, fmt.Errorf("still: device capture: %w", err)
	}
	img, err = DecodeSource(data)
	if err != nil {
		return nil, PathFallback, err
	}
	return img, PathFallback, nil
}

func labelPath(p string) string {
	if p == "" {
		return "none"
	}
	return p
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidOptions):
		return "invalid"
	case errors.Is(err, ErrDecodeFailed):
		return "decode_error"
	case errors.Is(err, ErrCompressionFailed):
		return "compression_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "device_error"
	}
}
