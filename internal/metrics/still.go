// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StillCaptureDuration tracks end-to-end still capture latency by acquisition path.
	StillCaptureDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "camcore_still_capture_duration_seconds",
		Help:    "Time from still capture request to encoded result",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"path"})

	// StillCaptureTotal counts still capture outcomes.
	StillCaptureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camcore_still_capture_total",
		Help: "Total number of still capture requests by acquisition path and result",
	}, []string{"path", "result"})
)

// ObserveStillCapture records one finished still capture.
func ObserveStillCapture(path, result string, d time.Duration) {
	path = labelOrUnknown(path)
	StillCaptureDuration.WithLabelValues(path).Observe(d.Seconds())
	StillCaptureTotal.WithLabelValues(path, labelOrUnknown(result)).Inc()
}
