// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHolder(t *testing.T, path string) *ConfigHolder {
	t.Helper()
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	return NewConfigHolder(initial, loader)
}

func TestReloadSwapsAndNotifies(t *testing.T) {
	path := writeConfig(t, "still:\n  jpegQuality: 70\n")
	h := newHolder(t, path)
	require.Equal(t, 70, h.Get().Still.JPEGQuality)

	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("still:\n  jpegQuality: 55\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, 55, h.Get().Still.JPEGQuality)
	select {
	case cfg := <-ch:
		assert.Equal(t, 55, cfg.Still.JPEGQuality)
	default:
		t.Fatal("listener not notified")
	}
}

func TestReloadKeepsConfigOnInvalidFile(t *testing.T) {
	path := writeConfig(t, "still:\n  jpegQuality: 70\n")
	h := newHolder(t, path)

	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("still:\n  jpegQuality: 0\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))

	assert.Equal(t, 70, h.Get().Still.JPEGQuality)
	assert.Empty(t, ch)
}

func TestFullListenerIsSkipped(t *testing.T) {
	path := writeConfig(t, "")
	h := newHolder(t, path)

	ch := make(chan AppConfig) // unbuffered, never read
	h.RegisterListener(ch)

	done := make(chan error, 1)
	go func() { done <- h.Reload(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reload blocked on listener")
	}
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	path := writeConfig(t, "still:\n  workers: 2\n  frameRetries: 3\n")
	h := newHolder(t, path)
	h.debounce = 20 * time.Millisecond

	ch := make(chan AppConfig, 4)
	h.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	// give the watcher time to register before touching the file
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("still:\n  workers: 2\n  frameRetries: 7\n"), 0o600); err != nil {
			return false
		}
		select {
		case cfg := <-ch:
			return cfg.Still.FrameRetries == 7
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 7, h.Get().Still.FrameRetries)
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	path := writeConfig(t, "")
	h := newHolder(t, path)
	h.debounce = 10 * time.Millisecond

	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	sibling := filepath.Join(filepath.Dir(path), "other.yaml")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(sibling, []byte("x: 1\n"), 0o600))
		time.Sleep(20 * time.Millisecond)
	}
	assert.Empty(t, ch)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchWithoutFileWaitsForContext(t *testing.T) {
	h := newHolder(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
