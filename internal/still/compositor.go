// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package still

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/ManuGH/camcore/internal/log"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// DefaultJPEGQuality is used when the configured quality is out of range.
const DefaultJPEGQuality = 85

type encodeFunc func(w io.Writer, img image.Image, quality int) error

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// Compositor runs the geometry pipeline on an upright source image. It holds
// no per-call state and is safe for concurrent use.
type Compositor struct {
	quality int
	encode  encodeFunc
	logger  zerolog.Logger
}

// NewCompositor returns a compositor encoding JPEG at the given quality (1-100).
func NewCompositor(quality int) *Compositor {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Compositor{
		quality: quality,
		encode:  encodeJPEG,
		logger:  log.WithComponent("still"),
	}
}

// Quality returns the JPEG quality in use.
func (c *Compositor) Quality() int { return c.quality }

// rotate turns img by deg degrees clockwise. Only quarter turns are supported.
func rotate(img image.Image, deg int) image.Image {
	switch normalizeDegrees(deg) {
	case 90:
		return imaging.Rotate270(img) // imaging rotates counter-clockwise
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func sizeOf(img image.Image) Resolution {
	b := img.Bounds()
	return Resolution{Width: b.Dx(), Height: b.Dy()}
}

// DecodeSource decodes encoded still bytes into upright pixels, applying any
// EXIF orientation.
func DecodeSource(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return img, nil
}

// Compose turns an upright source into the final encoded still.
func (c *Compositor) Compose(src image.Image, opts CaptureOptions) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	plan := NewPlan(sizeOf(src), opts)
	logger := c.logger.With().
		Str(log.FieldResolution, plan.Target.String()).
		Int(log.FieldRotation, plan.PresentationRotation).
		Logger()
	logger.Debug().
		Str(log.FieldEvent, "still.plan").
		Bool("expected_portrait", plan.ExpectedPortrait).
		Int("source_rotation", plan.SourceRotation).
		Str("source", plan.Source.String()).
		Msg("composition planned")

	var overlay image.Image
	if opts.Overlay != nil {
		overlay = c.decodeOverlay(logger, opts.Overlay)
	}

	img := rotate(src, plan.SourceRotation)
	img = imaging.Resize(img, plan.Resized.Width, plan.Resized.Height, imaging.CatmullRom)
	if !plan.Crop.Empty() {
		img = imaging.Crop(img, plan.Crop)
	}
	img = rotate(img, plan.PresentationRotation)

	final := sizeOf(img)
	if overlay != nil {
		place := PlaceOverlay(final, *opts.Overlay, sizeOf(overlay))
		if place.Rect != place.Desired {
			logger.Debug().
				Str(log.FieldEvent, "still.overlay_clamped").
				Str("desired", place.Desired.String()).
				Str("clamped", place.Rect.String()).
				Msg("overlay clamped to image bounds")
		}
		drawn := imaging.Resize(overlay, place.Rect.Dx(), place.Rect.Dy(), imaging.CatmullRom)
		img = imaging.Overlay(img, drawn, place.Rect.Min, 1.0)
	}

	res := Result{Width: final.Width, Height: final.Height}
	var buf bytes.Buffer
	if err := c.encode(&buf, img, c.quality); err != nil {
		return res, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}
	out, err := SetOrientation(buf.Bytes(), orientationFor(plan.PresentationRotation))
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}
	res.Bytes = out
	return res, nil
}

// decodeOverlay returns the overlay rotated for the device, or nil when it
// cannot be decoded. A broken overlay never fails the capture.
func (c *Compositor) decodeOverlay(logger zerolog.Logger, ov *OverlayData) image.Image {
	if len(ov.ImageBytes) == 0 {
		return nil
	}
	img, err := imaging.Decode(bytes.NewReader(ov.ImageBytes), imaging.AutoOrientation(true))
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "still.overlay_decode_failed").Msg("continuing without overlay")
		return nil
	}
	return rotate(img, overlayRotation(ov.DeviceRotation))
}
