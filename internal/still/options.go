// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package still

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOptions    = errors.New("still: invalid capture options")
	ErrDecodeFailed      = errors.New("still: decode failed")
	ErrCompressionFailed = errors.New("still: compression failed")
	ErrNoFrame           = errors.New("still: no frame available")
	ErrNoDevice          = errors.New("still: no still capture device")
)

// Resolution is a pixel size.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// Portrait reports whether the resolution is taller than wide. Squares count
// as portrait.
func (r Resolution) Portrait() bool { return r.Height >= r.Width }

// CaptureOptions describes one still capture request.
type CaptureOptions struct {
	TargetResolution Resolution   `json:"targetResolution"`
	Overlay          *OverlayData `json:"overlay,omitempty"`
}

// OverlayData places a caller-supplied image over the capture. Screen and
// preview values are logical pixels of the on-screen preview.
type OverlayData struct {
	ImageBytes       []byte  `json:"imageBytes"`
	ScreenX          float64 `json:"screenX"`
	ScreenY          float64 `json:"screenY"`
	ScreenWidth      float64 `json:"screenWidth"`
	ScreenHeight     float64 `json:"screenHeight"`
	PreviewWidth     float64 `json:"previewWidth"`
	PreviewHeight    float64 `json:"previewHeight"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
	DeviceRotation   int     `json:"deviceRotationDegrees"`
}

// DeviceRotation returns the normalized device rotation in degrees, or 0 when
// no overlay is present.
func (o CaptureOptions) DeviceRotation() int {
	if o.Overlay == nil {
		return 0
	}
	return normalizeDegrees(o.Overlay.DeviceRotation)
}

// Validate rejects requests the pipeline cannot honor.
func (o CaptureOptions) Validate() error {
	if o.TargetResolution.Width <= 0 || o.TargetResolution.Height <= 0 {
		return fmt.Errorf("%w: target resolution %s", ErrInvalidOptions, o.TargetResolution)
	}
	ov := o.Overlay
	if ov == nil {
		return nil
	}
	if ov.DeviceRotation%90 != 0 {
		return fmt.Errorf("%w: device rotation %d is not a quarter turn", ErrInvalidOptions, ov.DeviceRotation)
	}
	if len(ov.ImageBytes) == 0 {
		// rotation only
		return nil
	}
	if ov.PreviewWidth <= 0 || ov.PreviewHeight <= 0 {
		return fmt.Errorf("%w: preview size %gx%g", ErrInvalidOptions, ov.PreviewWidth, ov.PreviewHeight)
	}
	if ov.ScreenWidth <= 0 || ov.ScreenHeight <= 0 {
		return fmt.Errorf("%w: overlay size %gx%g", ErrInvalidOptions, ov.ScreenWidth, ov.ScreenHeight)
	}
	return nil
}

// Result is the outcome of a still capture. Width and Height are set whenever
// composition got far enough to know them, including on compression failure.
type Result struct {
	Bytes  []byte
	Width  int
	Height int
}
