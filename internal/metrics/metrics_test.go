// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/camcore/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	promhttp.Handler().ServeHTTP(recorder, req)
	return recorder.Body.String()
}

func TestMetricsExposure(t *testing.T) {
	metrics.IncFrameReceived("video")
	metrics.IncFrameDropped("video", "throttled")
	metrics.IncRecordingSample("audio", "written")
	metrics.ObserveStillCapture("fast", "ok", 30*time.Millisecond)
	metrics.IncBusDropReason("camera.error", "full")

	body := scrape(t)
	for _, name := range []string{
		"camcore_frames_received_total",
		"camcore_frames_dropped_total",
		"camcore_recording_samples_total",
		"camcore_still_capture_duration_seconds",
		"camcore_bus_dropped_total",
	} {
		assert.True(t, strings.Contains(body, name), "expected %s in scrape output", name)
	}
	assert.Contains(t, body, `reason="throttled"`)
}

func TestEmptyLabelsBecomeUnknown(t *testing.T) {
	before := testutil.ToFloat64(metrics.FramesDroppedTotal.WithLabelValues("unknown", "unknown"))
	metrics.IncFrameDropped("", "")
	after := testutil.ToFloat64(metrics.FramesDroppedTotal.WithLabelValues("unknown", "unknown"))
	assert.Equal(t, before+1, after)
}
