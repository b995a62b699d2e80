// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package still

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	markerSOI  = 0xD8
	markerSOS  = 0xDA
	markerAPP1 = 0xE1

	tagOrientation = 0x0112
	typeShort      = 3
)

var (
	errNotJPEG       = errors.New("still: not a JPEG stream")
	errTruncatedJPEG = errors.New("still: truncated JPEG segment")
	exifHeader       = []byte("Exif\x00\x00")
)

// exifSegment builds an APP1 segment holding a single-entry IFD0 with the
// orientation tag, big-endian.
func exifSegment(o Orientation) []byte {
	var tiff bytes.Buffer
	tiff.WriteString("MM")
	_ = binary.Write(&tiff, binary.BigEndian, uint16(42))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(8)) // IFD0 offset
	_ = binary.Write(&tiff, binary.BigEndian, uint16(1)) // entry count
	_ = binary.Write(&tiff, binary.BigEndian, uint16(tagOrientation))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(typeShort))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(o))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0)) // value padding
	_ = binary.Write(&tiff, binary.BigEndian, uint32(0)) // no next IFD

	payload := append(append([]byte{}, exifHeader...), tiff.Bytes()...)
	seg := make([]byte, 4, 4+len(payload))
	seg[0], seg[1] = 0xFF, markerAPP1
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}

// SetOrientation returns a copy of a JPEG stream with any existing APP1
// segments removed and an orientation-only EXIF segment inserted after SOI.
func SetOrientation(jpeg []byte, o Orientation) ([]byte, error) {
	if len(jpeg) < 4 || jpeg[0] != 0xFF || jpeg[1] != markerSOI {
		return nil, errNotJPEG
	}
	out := make([]byte, 0, len(jpeg)+64)
	out = append(out, jpeg[:2]...)
	out = append(out, exifSegment(o)...)

	pos := 2
	for pos < len(jpeg) {
		if pos+4 > len(jpeg) || jpeg[pos] != 0xFF {
			return nil, fmt.Errorf("%w at offset %d", errTruncatedJPEG, pos)
		}
		marker := jpeg[pos+1]
		if marker == markerSOS {
			// entropy-coded data follows; copy the rest verbatim
			return append(out, jpeg[pos:]...), nil
		}
		n := int(binary.BigEndian.Uint16(jpeg[pos+2:]))
		end := pos + 2 + n
		if n < 2 || end > len(jpeg) {
			return nil, fmt.Errorf("%w at offset %d", errTruncatedJPEG, pos)
		}
		if marker != markerAPP1 {
			out = append(out, jpeg[pos:end]...)
		}
		pos = end
	}
	return nil, fmt.Errorf("%w: missing start of scan", errTruncatedJPEG)
}

// ReadOrientation extracts the orientation tag written by SetOrientation or
// any big- or little-endian EXIF IFD0.
func ReadOrientation(jpeg []byte) (Orientation, bool) {
	if len(jpeg) < 4 || jpeg[0] != 0xFF || jpeg[1] != markerSOI {
		return 0, false
	}
	pos := 2
	for pos+4 <= len(jpeg) && jpeg[pos] == 0xFF {
		marker := jpeg[pos+1]
		if marker == markerSOS {
			return 0, false
		}
		n := int(binary.BigEndian.Uint16(jpeg[pos+2:]))
		end := pos + 2 + n
		if n < 2 || end > len(jpeg) {
			return 0, false
		}
		if marker == markerAPP1 {
			if o, ok := parseExifOrientation(jpeg[pos+4 : end]); ok {
				return o, true
			}
		}
		pos = end
	}
	return 0, false
}

func parseExifOrientation(app1 []byte) (Orientation, bool) {
	if !bytes.HasPrefix(app1, exifHeader) {
		return 0, false
	}
	tiff := app1[len(exifHeader):]
	if len(tiff) < 8 {
		return 0, false
	}
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "MM":
		order = binary.BigEndian
	case "II":
		order = binary.LittleEndian
	default:
		return 0, false
	}
	ifd := int(order.Uint32(tiff[4:]))
	if ifd+2 > len(tiff) {
		return 0, false
	}
	count := int(order.Uint16(tiff[ifd:]))
	for i := 0; i < count; i++ {
		e := ifd + 2 + i*12
		if e+12 > len(tiff) {
			return 0, false
		}
		if order.Uint16(tiff[e:]) == tagOrientation {
			return Orientation(order.Uint16(tiff[e+8:])), true
		}
	}
	return 0, false
}
