// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package still

import (
	"image"
	"math"
)

// Rotations are in degrees, positive is clockwise.

func normalizeDegrees(deg int) int {
	return ((deg % 360) + 360) % 360
}

// expectedPortrait decides the output aspect. With an overlay the device
// rotation rules; without one the source keeps its own aspect.
func expectedPortrait(opts CaptureOptions, src Resolution) bool {
	if opts.Overlay != nil {
		r := opts.DeviceRotation()
		return r == 0 || r == 180
	}
	return src.Portrait()
}

// orientationRotation picks the rotation that turns a source of the wrong
// aspect into the expected one. The defaults differ per branch.
func orientationRotation(sourcePortrait bool, deviceRotation int) int {
	r := normalizeDegrees(deviceRotation)
	if sourcePortrait {
		// portrait source, landscape expected
		switch r {
		case 90:
			return -90
		case 270:
			return 90
		case 180:
			return 180
		default:
			return -90
		}
	}
	// landscape source, portrait expected
	switch r {
	case 90:
		return 90
	case 270:
		return -90
	case 180:
		return 180
	default:
		return 90
	}
}

func rotatedSize(r Resolution, deg int) Resolution {
	if d := normalizeDegrees(deg); d == 90 || d == 270 {
		return Resolution{Width: r.Height, Height: r.Width}
	}
	return r
}

// fillSize scales src uniformly so that it covers target. Dimensions are
// rounded to the nearest pixel.
func fillSize(src, target Resolution) Resolution {
	scale := math.Max(
		float64(target.Width)/float64(src.Width),
		float64(target.Height)/float64(src.Height),
	)
	return Resolution{
		Width:  int(math.Round(float64(src.Width) * scale)),
		Height: int(math.Round(float64(src.Height) * scale)),
	}
}

// cropOrigin centers target inside resized.
func cropOrigin(resized, target Resolution) image.Point {
	return image.Point{
		X: max((resized.Width-target.Width)/2, 0),
		Y: max((resized.Height-target.Height)/2, 0),
	}
}

// Plan is the geometry of one composition, derived before any pixel work.
type Plan struct {
	Source           Resolution
	ExpectedPortrait bool
	Target           Resolution
	// SourceRotation is applied to the source to match the expected aspect.
	SourceRotation int
	Oriented       Resolution
	Resized        Resolution
	// Crop is empty when the resized image already fits the target.
	Crop image.Rectangle
	// PresentationRotation is the device rotation baked into the pixels last.
	PresentationRotation int
	Final                Resolution
}

// NewPlan derives the composition geometry for a source of the given size.
func NewPlan(src Resolution, opts CaptureOptions) Plan {
	p := Plan{
		Source:           src,
		ExpectedPortrait: expectedPortrait(opts, src),
		Target:           opts.TargetResolution,
	}
	if p.Target.Portrait() != p.ExpectedPortrait {
		p.Target = Resolution{Width: p.Target.Height, Height: p.Target.Width}
	}

	p.Oriented = src
	if src.Portrait() != p.ExpectedPortrait {
		p.SourceRotation = orientationRotation(src.Portrait(), opts.DeviceRotation())
		p.Oriented = rotatedSize(src, p.SourceRotation)
	}

	p.Resized = fillSize(p.Oriented, p.Target)
	cropped := p.Resized
	if p.Resized.Width > p.Target.Width || p.Resized.Height > p.Target.Height {
		o := cropOrigin(p.Resized, p.Target)
		p.Crop = image.Rect(o.X, o.Y, o.X+p.Target.Width, o.Y+p.Target.Height)
		cropped = p.Target
	}

	p.PresentationRotation = opts.DeviceRotation()
	p.Final = rotatedSize(cropped, p.PresentationRotation)
	return p
}

// overlayRotation is the rotation applied to the overlay image itself. Only
// landscape device rotations turn it, by the device rotation.
func overlayRotation(deviceRotation int) int {
	switch r := normalizeDegrees(deviceRotation); r {
	case 90, 270:
		return r
	default:
		return 0
	}
}

// Placement is where the overlay lands on the final image.
type Placement struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	// Desired is the unclamped rounded rect; Rect is clamped inside the image.
	Desired image.Rectangle
	Rect    image.Rectangle
}

// PlaceOverlay maps the overlay's preview rect onto a final image of size
// final. overlayImage is the size of the overlay bitmap after rotation.
func PlaceOverlay(final Resolution, ov OverlayData, overlayImage Resolution) Placement {
	fw, fh := float64(final.Width), float64(final.Height)
	scale := math.Max(fw/ov.PreviewWidth, fh/ov.PreviewHeight)
	offX := (ov.PreviewWidth*scale - fw) / 2
	offY := (ov.PreviewHeight*scale - fh) / 2

	sw, sh := ov.ScreenWidth, ov.ScreenHeight
	imageLandscape := overlayImage.Width >= overlayImage.Height
	screenLandscape := ov.ScreenWidth >= ov.ScreenHeight
	if imageLandscape != screenLandscape {
		sw, sh = sh, sw
	}

	w := int(math.Round(sw * scale))
	h := int(math.Round(sh * scale))
	x := int(math.Round(ov.ScreenX*scale - offX))
	y := int(math.Round(ov.ScreenY*scale - offY))

	cw := max(1, min(w, final.Width))
	ch := max(1, min(h, final.Height))
	cx := max(0, min(x, final.Width-cw))
	cy := max(0, min(y, final.Height-ch))

	return Placement{
		Scale:   scale,
		OffsetX: offX,
		OffsetY: offY,
		Desired: image.Rect(x, y, x+w, y+h),
		Rect:    image.Rect(cx, cy, cx+cw, cy+ch),
	}
}

// Orientation is an EXIF orientation tag value.
type Orientation uint16

const (
	OrientationNormal    Orientation = 1
	OrientationRotate180 Orientation = 3
	OrientationRotate90  Orientation = 6 // view by rotating 90 clockwise
	OrientationRotate270 Orientation = 8 // view by rotating 90 counter-clockwise
)

// orientationFor returns the tag that compensates pixels rotated by deg.
func orientationFor(deg int) Orientation {
	switch normalizeDegrees(deg) {
	case 90:
		return OrientationRotate270
	case 180:
		return OrientationRotate180
	case 270:
		return OrientationRotate90
	default:
		return OrientationNormal
	}
}
