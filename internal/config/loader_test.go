// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "test"
	assert.Equal(t, want, cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
still:
  frameRetries: 5
  retryDelay: 10ms
  jpegQuality: 92
recording:
  dir: /var/lib/camcore
`)
	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Still.FrameRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Still.RetryDelay)
	assert.Equal(t, 92, cfg.Still.JPEGQuality)
	assert.Equal(t, "/var/lib/camcore", cfg.Recording.Dir)
	// untouched fields keep defaults
	assert.Equal(t, Defaults().Still.CaptureTimeout, cfg.Still.CaptureTimeout)
	assert.Equal(t, Defaults().Stream, cfg.Stream)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "still:\n  jpegQuality: 70\n")
	t.Setenv("CAMCORE_STILL_JPEG_QUALITY", "40")
	t.Setenv("CAMCORE_STILL_RETRY_DELAY", "5ms")
	t.Setenv("CAMCORE_TELEMETRY_ENABLED", "yes")

	l := NewLoader(path, "test")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Still.JPEGQuality)
	assert.Equal(t, 5*time.Millisecond, cfg.Still.RetryDelay)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Contains(t, l.ConsumedEnvKeys, "CAMCORE_STILL_JPEG_QUALITY")
	assert.NotContains(t, l.ConsumedEnvKeys, "CAMCORE_STILL_WORKERS")
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CAMCORE_STILL_WORKERS", "many")
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Still.Workers, cfg.Still.Workers)
}

func TestUnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "still:\n  jpegQualty: 70\n")
	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestMultipleDocumentsRejected(t *testing.T) {
	path := writeConfig(t, "still:\n  workers: 2\n---\nstill:\n  workers: 3\n")
	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestEmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Still, cfg.Still)
}

func TestNonYAMLRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camcore.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "test").Load()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestValidateCollectsAllFailures(t *testing.T) {
	cfg := Defaults()
	cfg.Still.JPEGQuality = 0
	cfg.Still.Workers = 0
	cfg.Stream.MaxPendingFrames = -1
	cfg.HTTP.Listen = "nonsense"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "zipkin"

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	var fields []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var fe FieldError
		require.True(t, errors.As(e, &fe))
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"still.jpegQuality",
		"still.workers",
		"stream.maxPendingFrames",
		"http.listen",
		"telemetry.exporter",
	}, fields)
}

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, "still:\n  jpegQuality: 150\n")
	_, err := NewLoader(path, "test").Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
