// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader merges defaults, an optional YAML file and CAMCORE_* environment
// overrides. Precedence is ENV > file > defaults.
type Loader struct {
	configPath string
	version    string

	// ConsumedEnvKeys records every override that was present during the
	// last Load.
	ConsumedEnvKeys map[string]struct{}
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the file the loader reads, or "" when running on defaults.
func (l *Loader) Path() string { return l.configPath }

// Load builds and validates an AppConfig.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version
	l.ConsumedEnvKeys = make(map[string]struct{})

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// loadFile decodes one YAML document over cfg. Unknown fields are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("parse yaml: %w", err)
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("parse yaml: multiple documents are not supported")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	cfg.HTTP.Listen = l.envString("HTTP_LISTEN", cfg.HTTP.Listen)
	cfg.HTTP.ReadTimeout = l.envDuration("HTTP_READ_TIMEOUT", cfg.HTTP.ReadTimeout)
	cfg.HTTP.WriteTimeout = l.envDuration("HTTP_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout)
	cfg.HTTP.ShutdownTimeout = l.envDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	cfg.HTTP.StillRatePerMinute = l.envInt("HTTP_STILL_RATE_PER_MINUTE", cfg.HTTP.StillRatePerMinute)

	cfg.Stream.MaxPendingFrames = l.envInt("STREAM_MAX_PENDING_FRAMES", cfg.Stream.MaxPendingFrames)

	cfg.Still.FrameRetries = l.envInt("STILL_FRAME_RETRIES", cfg.Still.FrameRetries)
	cfg.Still.RetryDelay = l.envDuration("STILL_RETRY_DELAY", cfg.Still.RetryDelay)
	cfg.Still.CaptureTimeout = l.envDuration("STILL_CAPTURE_TIMEOUT", cfg.Still.CaptureTimeout)
	cfg.Still.JPEGQuality = l.envInt("STILL_JPEG_QUALITY", cfg.Still.JPEGQuality)
	cfg.Still.Workers = l.envInt("STILL_WORKERS", cfg.Still.Workers)

	cfg.Recording.Dir = l.envString("RECORDING_DIR", cfg.Recording.Dir)
	cfg.Recording.QueueDepth = l.envInt("RECORDING_QUEUE_DEPTH", cfg.Recording.QueueDepth)

	cfg.Bus.Buffer = l.envInt("BUS_BUFFER", cfg.Bus.Buffer)

	cfg.Source.Width = l.envInt("SOURCE_WIDTH", cfg.Source.Width)
	cfg.Source.Height = l.envInt("SOURCE_HEIGHT", cfg.Source.Height)
	cfg.Source.FPS = l.envFloat("SOURCE_FPS", cfg.Source.FPS)
	cfg.Source.SampleRate = l.envInt("SOURCE_SAMPLE_RATE", cfg.Source.SampleRate)
	cfg.Source.AudioBuffer = l.envDuration("SOURCE_AUDIO_BUFFER", cfg.Source.AudioBuffer)
	cfg.Source.StillWidth = l.envInt("SOURCE_STILL_WIDTH", cfg.Source.StillWidth)
	cfg.Source.StillHeight = l.envInt("SOURCE_STILL_HEIGHT", cfg.Source.StillHeight)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
}

func (l *Loader) track(key string) string {
	full := EnvPrefix + key
	if _, ok := os.LookupEnv(full); ok {
		l.ConsumedEnvKeys[full] = struct{}{}
	}
	return full
}

func (l *Loader) envString(key, def string) string {
	return ParseString(l.track(key), def)
}

func (l *Loader) envInt(key string, def int) int {
	return ParseInt(l.track(key), def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	return ParseFloat(l.track(key), def)
}

func (l *Loader) envBool(key string, def bool) bool {
	return ParseBool(l.track(key), def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	return ParseDuration(l.track(key), def)
}
