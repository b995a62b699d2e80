// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import "time"

// Exposure is the sensor state reported alongside streamed frames.
type Exposure struct {
	LensAperture float64
	ExposureTime time.Duration
	ISO          float64
}

// PlanePayload is the wire shape of one plane in a streamed frame.
type PlanePayload struct {
	BytesPerRow int    `json:"bytesPerRow"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Bytes       []byte `json:"bytes"`
}

// StreamPayload is the event published for each admitted image-stream frame.
type StreamPayload struct {
	Width                   int            `json:"width"`
	Height                  int            `json:"height"`
	Format                  Format         `json:"format"`
	Planes                  []PlanePayload `json:"planes"`
	LensAperture            float64        `json:"lensAperture"`
	SensorExposureTimeNanos int64          `json:"sensorExposureTimeNanos"`
	SensorSensitivity       float64        `json:"sensorSensitivity"`
}

// NewStreamPayload copies the planes of f into a payload that may outlive the
// producer callback. Plane length is BytesPerRow*Height, matching what the
// consumer expects to index with its stride.
func NewStreamPayload(f Frame, exp Exposure) StreamPayload {
	planes := make([]PlanePayload, 0, len(f.Planes))
	for _, p := range f.Planes {
		n := p.BytesPerRow * p.Height
		if n > len(p.Bytes) {
			n = len(p.Bytes)
		}
		buf := make([]byte, n)
		copy(buf, p.Bytes[:n])
		planes = append(planes, PlanePayload{
			BytesPerRow: p.BytesPerRow,
			Width:       p.Width,
			Height:      p.Height,
			Bytes:       buf,
		})
	}
	return StreamPayload{
		Width:                   f.Width,
		Height:                  f.Height,
		Format:                  f.Format,
		Planes:                  planes,
		LensAperture:            exp.LensAperture,
		SensorExposureTimeNanos: exp.ExposureTime.Nanoseconds(),
		SensorSensitivity:       exp.ISO,
	}
}
