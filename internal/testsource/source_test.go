// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testsource

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/camcore/internal/media"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingSink struct {
	mu           sync.Mutex
	frames       []media.Frame
	disconnected []media.Stream
}

func (r *recordingSink) OnFrame(f media.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recordingSink) StreamDisconnected(s media.Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, s)
}

func (r *recordingSink) count(stream media.Stream) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if f.Stream == stream {
			n++
		}
	}
	return n
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 16, 8
	cfg.StillWidth, cfg.StillHeight = 64, 32
	cfg.FPS = 200
	return cfg
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.FPS = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunEmitsInterleavedStreams(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src, err := New(smallConfig())
	require.NoError(t, err)
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, sink) }()

	require.Eventually(t, func() bool { return sink.count(media.StreamVideo) >= 10 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	var lastVideo, lastAudio time.Duration = -1, -1
	for _, f := range sink.frames {
		require.True(t, f.Ready)
		switch f.Stream {
		case media.StreamVideo:
			assert.Greater(t, f.PTS, lastVideo)
			lastVideo = f.PTS
		case media.StreamAudio:
			assert.Greater(t, f.PTS, lastAudio)
			assert.LessOrEqual(t, f.PTS, lastVideo, "audio never runs ahead of video")
			assert.Equal(t, 20*time.Millisecond, f.Duration)
			lastAudio = f.PTS
		}
	}
}

func TestVideoFrameConvertsToImage(t *testing.T) {
	src, err := New(smallConfig())
	require.NoError(t, err)
	f := src.VideoFrame(3, time.Second)
	img, err := f.Image()
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	r, g, b, _ := img.At(3, 4).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b}, "bar column is white")
}

func TestAudioFrameSize(t *testing.T) {
	src, err := New(smallConfig())
	require.NoError(t, err)
	f := src.AudioFrame(0)
	assert.Equal(t, 960*2, f.Size(), "48 kHz for 20 ms, 16-bit mono")
}

func TestDisconnectDropsStream(t *testing.T) {
	src, err := New(smallConfig())
	require.NoError(t, err)
	sink := &recordingSink{}

	src.Disconnect(sink, media.StreamAudio)
	src.emit(sink, src.AudioFrame(0))
	src.emit(sink, src.VideoFrame(0, 0))
	assert.Equal(t, 0, sink.count(media.StreamAudio))
	assert.Equal(t, 1, sink.count(media.StreamVideo))
	assert.Equal(t, []media.Stream{media.StreamAudio}, sink.disconnected)

	src.Reconnect(media.StreamAudio)
	src.emit(sink, src.AudioFrame(time.Second))
	assert.Equal(t, 1, sink.count(media.StreamAudio))
}

func TestCaptureStill(t *testing.T) {
	src, err := New(smallConfig())
	require.NoError(t, err)

	data, err := src.CaptureStill(context.Background())
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	boom := errors.New("shutter jammed")
	src.FailStill(boom)
	_, err = src.CaptureStill(context.Background())
	assert.ErrorIs(t, err, boom)

	src.FailStill(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.CaptureStill(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
