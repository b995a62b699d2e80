// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across camcore.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPRouteKey      = "http.route"
	HTTPStatusCodeKey = "http.status_code"

	// Still capture attributes
	StillPathKey           = "still.path"
	StillTargetKey         = "still.target"
	StillRotationKey       = "still.device_rotation"
	StillOverlayKey        = "still.overlay"
	StillSourceRotationKey = "still.source_rotation"
	StillResultWidthKey    = "still.result_width"
	StillResultHeightKey   = "still.result_height"
	StillBytesKey          = "still.bytes"

	// Recording attributes
	RecordingSessionKey = "recording.session_id"
	RecordingStateKey   = "recording.state"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// StillRequestAttributes describes a still capture request.
func StillRequestAttributes(target string, rotation int, overlay bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StillTargetKey, target),
		attribute.Int(StillRotationKey, rotation),
		attribute.Bool(StillOverlayKey, overlay),
	}
}

// StillResultAttributes describes a finished composition.
func StillResultAttributes(path string, width, height, size int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if path != "" {
		attrs = append(attrs, attribute.String(StillPathKey, path))
	}
	return append(attrs,
		attribute.Int(StillResultWidthKey, width),
		attribute.Int(StillResultHeightKey, height),
		attribute.Int(StillBytesKey, size),
	)
}

// RecordingAttributes creates recording span attributes.
func RecordingAttributes(sessionID, state string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(RecordingSessionKey, sessionID))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(RecordingStateKey, state))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
