// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package testsource is a deterministic stand-in for a camera: it emits paced
// BGRA video and PCM16 audio frames and serves still captures.
package testsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/ManuGH/camcore/internal/log"
	"github.com/ManuGH/camcore/internal/media"
	"github.com/disintegration/imaging"
	"golang.org/x/time/rate"
)

// Sink receives what the source produces. OnFrame is never called concurrently.
type Sink interface {
	OnFrame(f media.Frame)
	StreamDisconnected(s media.Stream)
}

// Config shapes the synthetic streams.
type Config struct {
	Width       int
	Height      int
	FPS         float64
	SampleRate  int           // audio samples per second
	AudioBuffer time.Duration // duration of one audio frame
	StillWidth  int
	StillHeight int
	Exposure    media.Exposure
}

// DefaultConfig is a 720p30 source with 20ms mono audio buffers.
func DefaultConfig() Config {
	return Config{
		Width:       1280,
		Height:      720,
		FPS:         30,
		SampleRate:  48000,
		AudioBuffer: 20 * time.Millisecond,
		StillWidth:  1920,
		StillHeight: 1080,
		Exposure: media.Exposure{
			LensAperture: 1.8,
			ExposureTime: time.Second / 120,
			ISO:          100,
		},
	}
}

var ErrInvalidConfig = errors.New("testsource: invalid config")

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.FPS <= 0 {
		return fmt.Errorf("%w: video %dx%d@%g", ErrInvalidConfig, c.Width, c.Height, c.FPS)
	}
	if c.SampleRate <= 0 || c.AudioBuffer <= 0 {
		return fmt.Errorf("%w: audio %d Hz / %s", ErrInvalidConfig, c.SampleRate, c.AudioBuffer)
	}
	return nil
}

// Source generates frames until its Run context ends.
type Source struct {
	cfg     Config
	limiter *rate.Limiter

	mu           sync.Mutex
	disconnected map[media.Stream]bool
	stillErr     error
	videoN       int64
}

// New validates cfg and returns an idle source.
func New(cfg Config) (*Source, error) {
	if cfg.StillWidth <= 0 || cfg.StillHeight <= 0 {
		cfg.StillWidth, cfg.StillHeight = cfg.Width, cfg.Height
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Source{
		cfg:          cfg,
		limiter:      rate.NewLimiter(rate.Limit(cfg.FPS), 1),
		disconnected: make(map[media.Stream]bool),
	}, nil
}

// Exposure reports the fixed sensor state.
func (s *Source) Exposure() media.Exposure { return s.cfg.Exposure }

// Config returns the source configuration.
func (s *Source) Config() Config { return s.cfg }

// Run paces video frames at the configured rate and interleaves audio buffers
// so that audio never runs ahead of video.
func (s *Source) Run(ctx context.Context, sink Sink) error {
	logger := log.WithComponent("testsource")
	logger.Info().
		Str(log.FieldEvent, "source.start").
		Str(log.FieldResolution, fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height)).
		Float64("fps", s.cfg.FPS).
		Msg("synthetic source running")

	frameInterval := time.Duration(float64(time.Second) / s.cfg.FPS)
	var audioPTS time.Duration
	for n := int64(0); ; n++ {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		videoPTS := time.Duration(n) * frameInterval
		s.emit(sink, s.VideoFrame(n, videoPTS))

		for audioPTS <= videoPTS {
			s.emit(sink, s.AudioFrame(audioPTS))
			audioPTS += s.cfg.AudioBuffer
		}
	}
}

// emit drops frames of a disconnected stream; the capture pipeline simply
// stops delivering them.
func (s *Source) emit(sink Sink, f media.Frame) {
	s.mu.Lock()
	off := s.disconnected[f.Stream]
	if f.IsVideo() {
		s.videoN++
	}
	s.mu.Unlock()
	if !off {
		sink.OnFrame(f)
	}
}

// Disconnect stops delivering one stream and tells the sink.
func (s *Source) Disconnect(sink Sink, stream media.Stream) {
	s.mu.Lock()
	s.disconnected[stream] = true
	s.mu.Unlock()
	sink.StreamDisconnected(stream)
}

// Reconnect resumes delivery of a stream.
func (s *Source) Reconnect(stream media.Stream) {
	s.mu.Lock()
	delete(s.disconnected, stream)
	s.mu.Unlock()
}

// VideoFrame builds the nth video frame: a gradient with a bar that moves one
// column per frame.
func (s *Source) VideoFrame(n int64, pts time.Duration) media.Frame {
	w, h := s.cfg.Width, s.cfg.Height
	stride := w * 4
	buf := make([]byte, stride*h)
	bar := int(n % int64(w))
	for y := 0; y < h; y++ {
		row := buf[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			if x == bar {
				px[0], px[1], px[2] = 255, 255, 255
			} else {
				px[0] = uint8(255 * y / max(h-1, 1)) // B
				px[1] = 64                           // G
				px[2] = uint8(255 * x / max(w-1, 1)) // R
			}
			px[3] = 255
		}
	}
	return media.Frame{
		Stream: media.StreamVideo,
		Format: media.FormatBGRA,
		Width:  w,
		Height: h,
		Planes: []media.Plane{{BytesPerRow: stride, Width: w, Height: h, Bytes: buf}},
		PTS:    pts,
		Ready:  true,
	}
}

// AudioFrame builds one silent PCM16 mono buffer starting at pts.
func (s *Source) AudioFrame(pts time.Duration) media.Frame {
	samples := int(int64(s.cfg.SampleRate) * int64(s.cfg.AudioBuffer) / int64(time.Second))
	return media.Frame{
		Stream:   media.StreamAudio,
		Format:   media.FormatPCM16,
		Planes:   []media.Plane{{BytesPerRow: samples * 2, Width: samples, Height: 1, Bytes: make([]byte, samples*2)}},
		PTS:      pts,
		Duration: s.cfg.AudioBuffer,
		Ready:    true,
	}
}

// FailStill makes subsequent still captures return err. nil clears it.
func (s *Source) FailStill(err error) {
	s.mu.Lock()
	s.stillErr = err
	s.mu.Unlock()
}

// CaptureStill renders a high-resolution JPEG of the current pattern.
func (s *Source) CaptureStill(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	err := s.stillErr
	n := s.videoN
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := s.cfg.StillWidth, s.cfg.StillHeight
	img := imaging.New(w, h, color.NRGBA{R: 32, G: 64, B: 160, A: 255})
	bar := imaging.New(max(w/64, 1), h, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img = imaging.Paste(img, bar, image.Pt(int(n%int64(w)), 0))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("testsource: encode still: %w", err)
	}
	return buf.Bytes(), nil
}
