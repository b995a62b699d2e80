// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesReceivedTotal counts frames delivered by the capture source.
	FramesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camcore_frames_received_total",
		Help: "Total number of frames delivered by the capture source",
	}, []string{"stream"})

	// FramesDroppedTotal counts frames dropped on the producer path by reason
	// (not_ready, throttled, undelivered).
	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camcore_frames_dropped_total",
		Help: "Total number of frames dropped on the capture path by reason",
	}, []string{"stream", "reason"})

	// FrameCacheOverwritesTotal counts cached frames replaced before anyone consumed them.
	FrameCacheOverwritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camcore_framecache_overwrites_total",
		Help: "Total number of unconsumed cached frames replaced by a newer frame",
	})

	// StreamPendingFrames reports frames admitted to the image stream and not yet acknowledged.
	StreamPendingFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camcore_stream_pending_frames",
		Help: "Image-stream frames in flight to the streaming consumer",
	})
)

// IncFrameReceived records a frame from the capture source.
func IncFrameReceived(stream string) {
	FramesReceivedTotal.WithLabelValues(labelOrUnknown(stream)).Inc()
}

// IncFrameDropped records a dropped frame.
func IncFrameDropped(stream, reason string) {
	FramesDroppedTotal.WithLabelValues(labelOrUnknown(stream), labelOrUnknown(reason)).Inc()
}

// IncFrameCacheOverwrite records an overwritten cache slot.
func IncFrameCacheOverwrite() {
	FrameCacheOverwritesTotal.Inc()
}

// SetStreamPending records the current image-stream in-flight count.
func SetStreamPending(n int) {
	StreamPendingFrames.Set(float64(n))
}
