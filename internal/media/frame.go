// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package media defines the frame and payload types shared by the capture data path.
package media

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// Stream tags a frame with the capture output it came from.
type Stream uint8

const (
	StreamVideo Stream = iota + 1
	StreamAudio
)

func (s Stream) String() string {
	switch s {
	case StreamVideo:
		return "video"
	case StreamAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Format is the memory layout of a frame's planes.
type Format string

const (
	FormatBGRA   Format = "bgra8888"
	FormatRGBA   Format = "rgba8888"
	FormatYUV420 Format = "yuv420"
	FormatNV12   Format = "nv12"
	FormatPCM16  Format = "pcm16"
)

var (
	ErrNotVideo          = errors.New("media: frame is not a video frame")
	ErrUnsupportedFormat = errors.New("media: unsupported pixel format")
	ErrShortPlane        = errors.New("media: plane shorter than declared geometry")
)

// Plane is one contiguous buffer of a frame. BytesPerRow may exceed the
// tightly packed row size (stride padding).
type Plane struct {
	BytesPerRow int
	Width       int
	Height      int
	Bytes       []byte
}

// Frame is an immutable reference to one decoded buffer delivered by the
// capture pipeline. Consumers must not modify Planes.
type Frame struct {
	Stream   Stream
	Format   Format
	Width    int
	Height   int
	Planes   []Plane
	PTS      time.Duration // presentation timestamp
	Duration time.Duration // audio buffers cover [PTS, PTS+Duration)
	Ready    bool          // data-ready flag from the pipeline
}

// IsVideo reports whether f belongs to the video stream.
func (f Frame) IsVideo() bool { return f.Stream == StreamVideo }

// Size returns the summed byte length of all planes.
func (f Frame) Size() int {
	n := 0
	for _, p := range f.Planes {
		n += len(p.Bytes)
	}
	return n
}

// Image converts a video frame into an upright image.Image. Packed formats
// become *image.NRGBA, planar YUV formats become *image.YCbCr. Plane bytes are
// copied so the result does not alias the capture buffer.
func (f Frame) Image() (image.Image, error) {
	if !f.IsVideo() {
		return nil, ErrNotVideo
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("media: invalid frame size %dx%d", f.Width, f.Height)
	}
	switch f.Format {
	case FormatBGRA, FormatRGBA:
		return f.packedImage()
	case FormatYUV420:
		return f.i420Image()
	case FormatNV12:
		return f.nv12Image()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.Format)
	}
}

func (f Frame) packedImage() (image.Image, error) {
	if len(f.Planes) < 1 {
		return nil, ErrShortPlane
	}
	p := f.Planes[0]
	if p.BytesPerRow < f.Width*4 || len(p.Bytes) < p.BytesPerRow*(f.Height-1)+f.Width*4 {
		return nil, ErrShortPlane
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	swap := f.Format == FormatBGRA
	for y := 0; y < f.Height; y++ {
		src := p.Bytes[y*p.BytesPerRow : y*p.BytesPerRow+f.Width*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		copy(dst, src)
		if swap {
			for i := 0; i < len(dst); i += 4 {
				dst[i], dst[i+2] = dst[i+2], dst[i]
			}
		}
	}
	return img, nil
}

func (f Frame) i420Image() (image.Image, error) {
	if len(f.Planes) < 3 {
		return nil, ErrShortPlane
	}
	img := image.NewYCbCr(image.Rect(0, 0, f.Width, f.Height), image.YCbCrSubsampleRatio420)
	cw, ch := (f.Width+1)/2, (f.Height+1)/2
	if err := copyRows(img.Y, img.YStride, f.Planes[0], f.Width, f.Height); err != nil {
		return nil, err
	}
	if err := copyRows(img.Cb, img.CStride, f.Planes[1], cw, ch); err != nil {
		return nil, err
	}
	if err := copyRows(img.Cr, img.CStride, f.Planes[2], cw, ch); err != nil {
		return nil, err
	}
	return img, nil
}

func (f Frame) nv12Image() (image.Image, error) {
	if len(f.Planes) < 2 {
		return nil, ErrShortPlane
	}
	img := image.NewYCbCr(image.Rect(0, 0, f.Width, f.Height), image.YCbCrSubsampleRatio420)
	cw, ch := (f.Width+1)/2, (f.Height+1)/2
	if err := copyRows(img.Y, img.YStride, f.Planes[0], f.Width, f.Height); err != nil {
		return nil, err
	}
	uv := f.Planes[1]
	if uv.BytesPerRow < cw*2 || len(uv.Bytes) < uv.BytesPerRow*(ch-1)+cw*2 {
		return nil, ErrShortPlane
	}
	for y := 0; y < ch; y++ {
		row := uv.Bytes[y*uv.BytesPerRow:]
		for x := 0; x < cw; x++ {
			img.Cb[y*img.CStride+x] = row[2*x]
			img.Cr[y*img.CStride+x] = row[2*x+1]
		}
	}
	return img, nil
}

func copyRows(dst []byte, dstStride int, p Plane, w, h int) error {
	if p.BytesPerRow < w || len(p.Bytes) < p.BytesPerRow*(h-1)+w {
		return ErrShortPlane
	}
	for y := 0; y < h; y++ {
		copy(dst[y*dstStride:y*dstStride+w], p.Bytes[y*p.BytesPerRow:y*p.BytesPerRow+w])
	}
	return nil
}
