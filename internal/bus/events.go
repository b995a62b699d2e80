// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import "time"

const (
	TopicCameraInitialized = "camera.initialized"
	TopicCameraError       = "camera.error"
	TopicImageStream       = "camera.image_stream"
	TopicRecordingState    = "recording.state"
)

// InitializedEvent is broadcast once the capture device is configured.
type InitializedEvent struct {
	PreviewWidth           float64 `json:"previewWidth"`
	PreviewHeight          float64 `json:"previewHeight"`
	ExposureMode           string  `json:"exposureMode"`
	FocusMode              string  `json:"focusMode"`
	ExposurePointSupported bool    `json:"exposurePointSupported"`
	FocusPointSupported    bool    `json:"focusPointSupported"`
}

// ErrorEvent reports an asynchronous failure on the capture path.
type ErrorEvent struct {
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	SessionID string    `json:"sessionId,omitempty"`
	At        time.Time `json:"at"`
}

// RecordingStateEvent reports a recording session state change.
type RecordingStateEvent struct {
	SessionID string    `json:"sessionId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
}
