// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camcore/internal/config"
	"github.com/ManuGH/camcore/internal/writer"
)

func startDaemon(t *testing.T) (string, *config.ConfigHolder, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "camcore.yaml")
	body := strings.Join([]string{
		"http:",
		"  listen: 127.0.0.1:0",
		"  stillRatePerMinute: 0",
		"recording:",
		"  dir: " + filepath.Join(dir, "rec"),
		"source:",
		"  width: 320",
		"  height: 240",
		"  fps: 30",
		"  stillWidth: 640",
		"  stillHeight: 480",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	loader := config.NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewConfigHolder(cfg, loader)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- run(ctx, holder, func(addr string) { addrCh <- addr }) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	select {
	case addr := <-addrCh:
		return "http://" + addr, holder, filepath.Join(dir, "rec")
	case err := <-done:
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not start")
	}
	return "", nil, ""
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestDaemonServesStillFromLiveFrames(t *testing.T) {
	base, _, _ := startDaemon(t)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		r, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = r.Body.Close()
		return r.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp = post(t, base+"/api/v1/still", `{"targetResolution":{"width":180,"height":320}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	// without an overlay the target follows the landscape source
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 180, cfg.Height)
}

func TestDaemonRecordsJournal(t *testing.T) {
	base, _, recDir := startDaemon(t)

	resp := post(t, base+"/api/v1/recording/start", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var started struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))

	time.Sleep(200 * time.Millisecond)

	resp = post(t, base+"/api/v1/recording/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f, err := os.Open(filepath.Join(recDir, started.SessionID+writer.Extension))
	require.NoError(t, err)
	defer f.Close()
	recs, err := writer.ReadAll(f)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.True(t, recs[0].SessionStart())
}

func TestDaemonAppliesReloadedStillSettings(t *testing.T) {
	_, holder, _ := startDaemon(t)

	ch := make(chan config.AppConfig, 1)
	holder.RegisterListener(ch)

	cfg := holder.Get()
	require.NoError(t, holder.Reload(context.Background()))
	next := <-ch
	assert.Equal(t, cfg.Still, next.Still)
}
