// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package still

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/ManuGH/camcore/internal/media"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

func encodeTestImage(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func solidJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	return encodeTestImage(t, imaging.New(w, h, c), imaging.JPEG)
}

// halves returns a w x h image with the left half a and the right half b.
func halves(w, h int, a, b color.Color) *image.NRGBA {
	img := imaging.New(w, h, a)
	return imaging.Paste(img, imaging.New(w-w/2, h, b), image.Pt(w/2, 0))
}

func bgraFrame(w, h int, c color.NRGBA) media.Frame {
	row := make([]byte, w*4)
	for x := 0; x < w; x++ {
		row[4*x], row[4*x+1], row[4*x+2], row[4*x+3] = c.B, c.G, c.R, c.A
	}
	buf := make([]byte, 0, w*4*h)
	for y := 0; y < h; y++ {
		buf = append(buf, row...)
	}
	return media.Frame{
		Stream: media.StreamVideo,
		Format: media.FormatBGRA,
		Width:  w,
		Height: h,
		Planes: []media.Plane{{BytesPerRow: w * 4, Width: w, Height: h, Bytes: buf}},
		Ready:  true,
	}
}

func decodeResult(t *testing.T, res Result) image.Image {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(res.Bytes))
	require.NoError(t, err)
	return img
}

func isRedish(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 < 60 && b>>8 < 60
}

func isBlueish(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return b>>8 > 200 && r>>8 < 60 && g>>8 < 60
}

func isDark(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 < 40 && g>>8 < 40 && b>>8 < 40
}
