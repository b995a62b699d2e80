// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package still

import (
	"errors"
	"image"
	"io"
	"testing"

	"github.com/ManuGH/camcore/internal/log"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overlayOptions(t *testing.T, rotation int) CaptureOptions {
	t.Helper()
	return CaptureOptions{
		TargetResolution: Resolution{Width: 540, Height: 960},
		Overlay: &OverlayData{
			ImageBytes:       encodeTestImage(t, imaging.New(50, 80, red), imaging.PNG),
			ScreenX:          100,
			ScreenY:          200,
			ScreenWidth:      50,
			ScreenHeight:     80,
			PreviewWidth:     300,
			PreviewHeight:    500,
			DevicePixelRatio: 2,
			DeviceRotation:   rotation,
		},
	}
}

func TestComposeLandscapeSourceToPortraitTarget(t *testing.T) {
	c := NewCompositor(85)
	src := imaging.New(192, 108, blue)
	opts := CaptureOptions{
		TargetResolution: Resolution{Width: 108, Height: 192},
		Overlay:          &OverlayData{DeviceRotation: 0},
	}

	res, err := c.Compose(src, opts)
	require.NoError(t, err)
	assert.Equal(t, 108, res.Width)
	assert.Equal(t, 192, res.Height)

	img := decodeResult(t, res)
	assert.Equal(t, image.Rect(0, 0, 108, 192), img.Bounds())
	o, ok := ReadOrientation(res.Bytes)
	require.True(t, ok)
	assert.Equal(t, OrientationNormal, o)
}

func TestComposeOverlayPlacement(t *testing.T) {
	c := NewCompositor(95)
	res, err := c.Compose(imaging.New(540, 960, black), overlayOptions(t, 0))
	require.NoError(t, err)
	require.Equal(t, 540, res.Width)
	require.Equal(t, 960, res.Height)

	// scale 1.92, offsetX 18: rect (174,384) size 96x154
	img := decodeResult(t, res)
	assert.True(t, isRedish(img.At(174+48, 384+77)), "overlay centre")
	assert.True(t, isRedish(img.At(178, 388)), "overlay top-left interior")
	assert.True(t, isDark(img.At(20, 20)), "base outside overlay")
	assert.True(t, isDark(img.At(174+96+10, 384+77)), "right of overlay")
}

func TestComposeIsDeterministic(t *testing.T) {
	c := NewCompositor(85)
	src := imaging.New(540, 960, black)
	a, err := c.Compose(src, overlayOptions(t, 0))
	require.NoError(t, err)
	b, err := c.Compose(src, overlayOptions(t, 0))
	require.NoError(t, err)
	assert.Equal(t, a.Bytes, b.Bytes)
}

func TestComposeDeviceRotationSetsOrientation(t *testing.T) {
	c := NewCompositor(85)
	tests := []struct {
		rotation int
		want     Orientation
	}{
		{90, OrientationRotate270},
		{180, OrientationRotate180},
		{270, OrientationRotate90},
	}
	for _, tt := range tests {
		opts := CaptureOptions{
			TargetResolution: Resolution{Width: 96, Height: 64},
			Overlay:          &OverlayData{DeviceRotation: tt.rotation},
		}
		res, err := c.Compose(imaging.New(96, 64, blue), opts)
		require.NoError(t, err)
		o, ok := ReadOrientation(res.Bytes)
		require.True(t, ok)
		assert.Equal(t, tt.want, o, "rotation %d", tt.rotation)

		// 90/270 turn a landscape intermediate; 180 expects portrait and crops to it
		assert.Equal(t, 64, res.Width, "rotation %d", tt.rotation)
		assert.Equal(t, 96, res.Height, "rotation %d", tt.rotation)
	}
}

func TestOverlayTurnsClockwiseWithDevice(t *testing.T) {
	c := NewCompositor(85)
	png := encodeTestImage(t, halves(40, 20, red, blue), imaging.PNG)

	tests := []struct {
		rotation  int
		topIsRed  bool
		rotatedTo Resolution
	}{
		{rotation: 90, topIsRed: true, rotatedTo: Resolution{Width: 20, Height: 40}},
		{rotation: 270, topIsRed: false, rotatedTo: Resolution{Width: 20, Height: 40}},
		{rotation: 0, rotatedTo: Resolution{Width: 40, Height: 20}},
		{rotation: 180, rotatedTo: Resolution{Width: 40, Height: 20}},
	}
	for _, tt := range tests {
		img := c.decodeOverlay(log.Base(), &OverlayData{ImageBytes: png, DeviceRotation: tt.rotation})
		require.NotNil(t, img)
		require.Equal(t, tt.rotatedTo, sizeOf(img), "rotation %d", tt.rotation)
		if tt.rotatedTo.Height == 20 {
			assert.True(t, isRedish(img.At(2, 10)), "unrotated overlay keeps red on the left")
			continue
		}
		top, bottom := img.At(10, 2), img.At(10, 37)
		if tt.topIsRed {
			assert.True(t, isRedish(top) && isBlueish(bottom), "rotation %d", tt.rotation)
		} else {
			assert.True(t, isBlueish(top) && isRedish(bottom), "rotation %d", tt.rotation)
		}
	}
}

func TestComposeSurvivesBrokenOverlay(t *testing.T) {
	c := NewCompositor(85)
	opts := overlayOptions(t, 0)
	opts.Overlay.ImageBytes = []byte("definitely not an image")

	res, err := c.Compose(imaging.New(540, 960, black), opts)
	require.NoError(t, err)
	img := decodeResult(t, res)
	assert.True(t, isDark(img.At(222, 461)), "no overlay drawn")
}

func TestComposeCompressionFailureKeepsDimensions(t *testing.T) {
	c := NewCompositor(85)
	c.encode = func(io.Writer, image.Image, int) error { return errors.New("encoder exploded") }

	res, err := c.Compose(imaging.New(64, 48, blue), CaptureOptions{TargetResolution: Resolution{Width: 32, Height: 24}})
	require.ErrorIs(t, err, ErrCompressionFailed)
	assert.Nil(t, res.Bytes)
	assert.Equal(t, 32, res.Width)
	assert.Equal(t, 24, res.Height)
}

func TestComposeRejectsInvalidOptions(t *testing.T) {
	_, err := NewCompositor(85).Compose(imaging.New(4, 4, blue), CaptureOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestNewCompositorQualityBounds(t *testing.T) {
	assert.Equal(t, DefaultJPEGQuality, NewCompositor(0).Quality())
	assert.Equal(t, DefaultJPEGQuality, NewCompositor(101).Quality())
	assert.Equal(t, 70, NewCompositor(70).Quality())
}

func TestDecodeSource(t *testing.T) {
	img, err := DecodeSource(solidJPEG(t, 30, 10, red))
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 30, Height: 10}, sizeOf(img))

	rotated, err := SetOrientation(solidJPEG(t, 30, 10, red), OrientationRotate90)
	require.NoError(t, err)
	img, err = DecodeSource(rotated)
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 10, Height: 30}, sizeOf(img), "orientation resolved into pixels")

	_, err = DecodeSource([]byte{0, 1, 2})
	assert.ErrorIs(t, err, ErrDecodeFailed)
}
