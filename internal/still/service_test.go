// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package still

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/camcore/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

type fakeFrames struct {
	mu      sync.Mutex
	frame   media.Frame
	readyAt int
	calls   int
}

func (f *fakeFrames) Peek() (media.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.readyAt == 0 || f.calls < f.readyAt {
		return media.Frame{}, false
	}
	return f.frame, true
}

func (f *fakeFrames) peeks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDevice struct {
	data  []byte
	err   error
	calls atomic.Int32
}

func (d *fakeDevice) CaptureStill(ctx context.Context) ([]byte, error) {
	d.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.data, d.err
}

func testSettings() Settings {
	s := DefaultSettings()
	s.RetryDelay = time.Millisecond
	return s
}

var portraitOpts = CaptureOptions{TargetResolution: Resolution{Width: 32, Height: 48}}

func TestCaptureFastPath(t *testing.T) {
	frames := &fakeFrames{frame: bgraFrame(64, 96, red), readyAt: 1}
	dev := &fakeDevice{}
	svc := NewService(frames, dev, testSettings())

	res, err := svc.Capture(context.Background(), portraitOpts)
	require.NoError(t, err)
	assert.Equal(t, 32, res.Width)
	assert.Equal(t, 48, res.Height)
	assert.True(t, isRedish(decodeResult(t, res).At(16, 24)), "BGRA channels swapped correctly")
	assert.Zero(t, dev.calls.Load())
	assert.Equal(t, 1, frames.peeks())
}

func TestCaptureWaitsForFirstFrame(t *testing.T) {
	frames := &fakeFrames{frame: bgraFrame(64, 96, red), readyAt: 3}
	dev := &fakeDevice{}
	svc := NewService(frames, dev, testSettings())

	_, err := svc.Capture(context.Background(), portraitOpts)
	require.NoError(t, err)
	assert.Equal(t, 3, frames.peeks())
	assert.Zero(t, dev.calls.Load())
}

func TestCaptureFallsBackAfterRetries(t *testing.T) {
	frames := &fakeFrames{}
	dev := &fakeDevice{data: solidJPEG(t, 120, 180, blue)}
	svc := NewService(frames, dev, testSettings())

	res, err := svc.Capture(context.Background(), portraitOpts)
	require.NoError(t, err)
	assert.Equal(t, 4, frames.peeks(), "initial attempt plus three retries")
	assert.Equal(t, int32(1), dev.calls.Load())
	assert.Equal(t, 32, res.Width)
	assert.Equal(t, 48, res.Height)
}

func TestCaptureDeviceFailure(t *testing.T) {
	boom := errors.New("sensor unavailable")
	svc := NewService(&fakeFrames{}, &fakeDevice{err: boom}, testSettings())

	res, err := svc.Capture(context.Background(), portraitOpts)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Result{}, res)
}

func TestCaptureDeviceReturnsGarbage(t *testing.T) {
	svc := NewService(&fakeFrames{}, &fakeDevice{data: []byte("nope")}, testSettings())
	res, err := svc.Capture(context.Background(), portraitOpts)
	require.ErrorIs(t, err, ErrDecodeFailed)
	assert.Zero(t, res.Width)
}

func TestCaptureWithoutDevice(t *testing.T) {
	svc := NewService(&fakeFrames{}, nil, testSettings())
	_, err := svc.Capture(context.Background(), portraitOpts)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestCaptureUnconvertibleFrameGoesToDevice(t *testing.T) {
	bad := media.Frame{Stream: media.StreamVideo, Format: media.FormatBGRA, Width: 4, Height: 4, Ready: true}
	frames := &fakeFrames{frame: bad, readyAt: 1}
	dev := &fakeDevice{data: solidJPEG(t, 40, 60, blue)}
	svc := NewService(frames, dev, testSettings())

	_, err := svc.Capture(context.Background(), portraitOpts)
	require.NoError(t, err)
	assert.Equal(t, 1, frames.peeks(), "conversion errors are not retried")
	assert.Equal(t, int32(1), dev.calls.Load())
}

func TestCaptureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dev := &fakeDevice{data: solidJPEG(t, 40, 60, blue)}
	svc := NewService(&fakeFrames{}, dev, testSettings())

	_, err := svc.Capture(ctx, portraitOpts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, dev.calls.Load())
}

func TestCaptureAsyncReportsOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	frames := &fakeFrames{frame: bgraFrame(64, 96, red), readyAt: 1}
	svc := NewService(frames, nil, testSettings())

	var calls atomic.Int32
	done := make(chan Result, 1)
	svc.CaptureAsync(context.Background(), portraitOpts, func(res Result, err error) {
		calls.Add(1)
		assert.NoError(t, err)
		done <- res
	})
	svc.Wait()

	res := <-done
	assert.Equal(t, 32, res.Width)
	assert.Equal(t, int32(1), calls.Load())
}

func TestApplySettingsKeepsWorkerBound(t *testing.T) {
	svc := NewService(&fakeFrames{}, nil, Settings{Workers: 3, JPEGQuality: 85})
	next := testSettings()
	next.Workers = 10
	next.JPEGQuality = 60
	next.FrameRetries = -1
	svc.Apply(next)

	got := svc.Settings()
	assert.Equal(t, 3, got.Workers)
	assert.Equal(t, 0, got.FrameRetries)
	assert.Equal(t, 60, svc.compositor.Load().Quality())
}

func TestCaptureIsTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	frames := &fakeFrames{frame: bgraFrame(64, 96, red), readyAt: 1}
	svc := NewService(frames, nil, testSettings())
	_, err := svc.Capture(context.Background(), portraitOpts)
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "still.capture", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("still.path", PathFast))
}
