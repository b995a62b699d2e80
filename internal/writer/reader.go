// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package writer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/camcore/internal/media"
)

var ErrBadMagic = errors.New("writer: not a sample journal")

// Record is one decoded journal entry. Stream is zero for the session start.
type Record struct {
	Stream  media.Stream
	PTS     time.Duration
	Payload []byte
}

// SessionStart reports whether r anchors the write clock.
func (r Record) SessionStart() bool { return r.Stream == streamSessionStart }

// ReadAll decodes a journal stream.
func ReadAll(r io.Reader) ([]Record, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if string(magic) != Magic {
		return nil, ErrBadMagic
	}

	var out []Record
	var hdr [13]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("read record header: %w", err)
		}
		n := binary.BigEndian.Uint32(hdr[9:13])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return out, fmt.Errorf("read record payload: %w", err)
		}
		out = append(out, Record{
			Stream:  media.Stream(hdr[0]),
			PTS:     time.Duration(int64(binary.BigEndian.Uint64(hdr[1:9]))),
			Payload: payload,
		})
	}
}
