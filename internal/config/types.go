// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config provides configuration management for camcored.
package config

import "time"

// AppConfig is the effective daemon configuration after defaults, file and
// environment have been merged.
type AppConfig struct {
	Version string `yaml:"-"`

	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Stream    StreamConfig    `yaml:"stream"`
	Still     StillConfig     `yaml:"still"`
	Recording RecordingConfig `yaml:"recording"`
	Bus       BusConfig       `yaml:"bus"`
	Source    SourceConfig    `yaml:"source"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// HTTPConfig configures the operator surface.
type HTTPConfig struct {
	Listen             string        `yaml:"listen"`
	ReadTimeout        time.Duration `yaml:"readTimeout"`
	WriteTimeout       time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`
	StillRatePerMinute int           `yaml:"stillRatePerMinute"`
}

type StreamConfig struct {
	// MaxPendingFrames is the image-stream throttle ceiling.
	MaxPendingFrames int `yaml:"maxPendingFrames"`
}

// StillConfig holds the live-applicable still capture settings. Workers is
// read once at startup.
type StillConfig struct {
	FrameRetries   int           `yaml:"frameRetries"`
	RetryDelay     time.Duration `yaml:"retryDelay"`
	CaptureTimeout time.Duration `yaml:"captureTimeout"`
	JPEGQuality    int           `yaml:"jpegQuality"`
	Workers        int           `yaml:"workers"`
}

type RecordingConfig struct {
	Dir        string `yaml:"dir"`
	QueueDepth int    `yaml:"queueDepth"`
}

type BusConfig struct {
	Buffer int `yaml:"buffer"`
}

// SourceConfig shapes the synthetic capture source.
type SourceConfig struct {
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	FPS         float64       `yaml:"fps"`
	SampleRate  int           `yaml:"sampleRate"`
	AudioBuffer time.Duration `yaml:"audioBuffer"`
	StillWidth  int           `yaml:"stillWidth"`
	StillHeight int           `yaml:"stillHeight"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:   "info",
			Service: "camcore",
		},
		HTTP: HTTPConfig{
			Listen:             ":8088",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			StillRatePerMinute: 60,
		},
		Stream: StreamConfig{MaxPendingFrames: 4},
		Still: StillConfig{
			FrameRetries:   3,
			RetryDelay:     50 * time.Millisecond,
			CaptureTimeout: 5 * time.Second,
			JPEGQuality:    85,
			Workers:        2,
		},
		Recording: RecordingConfig{
			Dir:        "recordings",
			QueueDepth: 256,
		},
		Bus: BusConfig{Buffer: 64},
		Source: SourceConfig{
			Width:       1280,
			Height:      720,
			FPS:         30,
			SampleRate:  48000,
			AudioBuffer: 20 * time.Millisecond,
			StillWidth:  1920,
			StillHeight: 1080,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}
