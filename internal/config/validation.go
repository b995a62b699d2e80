// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type validator struct {
	errs []error
}

func (v *validator) add(field, msg string, value any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: msg, Value: value})
}

func (v *validator) intRange(field string, value, lo, hi int) {
	if value < lo || value > hi {
		v.add(field, fmt.Sprintf("must be between %d and %d", lo, hi), value)
	}
}

func (v *validator) positive(field string, value int) {
	if value <= 0 {
		v.add(field, "must be positive", value)
	}
}

func (v *validator) duration(field string, value, lo time.Duration) {
	if value < lo {
		v.add(field, "must be at least "+lo.String(), value)
	}
}

func (v *validator) err() error {
	return errors.Join(v.errs...)
}

// Validate reports every invalid setting of cfg. Each failure unwraps to
// ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	v := &validator{}

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			v.add("log.level", "unknown level", cfg.Log.Level)
		}
	}

	if _, _, err := net.SplitHostPort(cfg.HTTP.Listen); err != nil {
		v.add("http.listen", "must be host:port", cfg.HTTP.Listen)
	}
	v.duration("http.readTimeout", cfg.HTTP.ReadTimeout, 0)
	v.duration("http.writeTimeout", cfg.HTTP.WriteTimeout, 0)
	v.duration("http.shutdownTimeout", cfg.HTTP.ShutdownTimeout, 0)
	v.intRange("http.stillRatePerMinute", cfg.HTTP.StillRatePerMinute, 0, 6000)

	v.intRange("stream.maxPendingFrames", cfg.Stream.MaxPendingFrames, 1, 64)

	v.intRange("still.frameRetries", cfg.Still.FrameRetries, 0, 20)
	v.duration("still.retryDelay", cfg.Still.RetryDelay, 0)
	v.duration("still.captureTimeout", cfg.Still.CaptureTimeout, 100*time.Millisecond)
	v.intRange("still.jpegQuality", cfg.Still.JPEGQuality, 1, 100)
	v.intRange("still.workers", cfg.Still.Workers, 1, 32)

	if strings.TrimSpace(cfg.Recording.Dir) == "" {
		v.add("recording.dir", "must not be empty", nil)
	}
	v.positive("recording.queueDepth", cfg.Recording.QueueDepth)

	v.positive("bus.buffer", cfg.Bus.Buffer)

	v.positive("source.width", cfg.Source.Width)
	v.positive("source.height", cfg.Source.Height)
	if cfg.Source.FPS <= 0 || cfg.Source.FPS > 240 {
		v.add("source.fps", "must be in (0, 240]", cfg.Source.FPS)
	}
	v.positive("source.sampleRate", cfg.Source.SampleRate)
	v.duration("source.audioBuffer", cfg.Source.AudioBuffer, time.Millisecond)
	v.positive("source.stillWidth", cfg.Source.StillWidth)
	v.positive("source.stillHeight", cfg.Source.StillHeight)

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			v.add("telemetry.exporter", "must be grpc or http", cfg.Telemetry.Exporter)
		}
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			v.add("telemetry.endpoint", "must not be empty", nil)
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.add("telemetry.samplingRate", "must be in [0, 1]", cfg.Telemetry.SamplingRate)
	}

	return v.err()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprint(x)
	}
}
