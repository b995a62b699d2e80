// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordingSamplesTotal counts samples seen by recording sessions by outcome.
	RecordingSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camcore_recording_samples_total",
		Help: "Total number of samples handled by recording sessions by stream and outcome",
	}, []string{"stream", "outcome"})

	// RecordingTransitionsTotal counts state machine transitions.
	RecordingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camcore_recording_transitions_total",
		Help: "Total number of recording session state transitions",
	}, []string{"from", "to"})

	// RecordingFailuresTotal counts sessions that terminated because the writer failed.
	RecordingFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camcore_recording_failures_total",
		Help: "Total number of recording sessions terminated by a writer failure",
	})

	// RecordingOffsetSeconds reports the accumulated discontinuity offset per stream.
	RecordingOffsetSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "camcore_recording_offset_seconds",
		Help: "Accumulated timestamp offset applied to a stream after disconnections",
	}, []string{"stream"})
)

// IncRecordingSample records the outcome of one sample.
func IncRecordingSample(stream, outcome string) {
	RecordingSamplesTotal.WithLabelValues(labelOrUnknown(stream), labelOrUnknown(outcome)).Inc()
}

// IncRecordingTransition records a state change.
func IncRecordingTransition(from, to string) {
	RecordingTransitionsTotal.WithLabelValues(labelOrUnknown(from), labelOrUnknown(to)).Inc()
}

// IncRecordingFailure records a terminal writer failure.
func IncRecordingFailure() {
	RecordingFailuresTotal.Inc()
}

// SetRecordingOffset records the current offset for a stream.
func SetRecordingOffset(stream string, seconds float64) {
	RecordingOffsetSeconds.WithLabelValues(labelOrUnknown(stream)).Set(seconds)
}
