// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recording

import (
	"context"
	"time"

	"github.com/ManuGH/camcore/internal/media"
)

// AppendStatus is the writer's answer to one Append call.
type AppendStatus int

const (
	AppendWritten AppendStatus = iota + 1
	AppendNotReady
	AppendFailed
)

// Writer is the media sink a session feeds. Ready and Append are called on the
// capture callback and must not block.
type Writer interface {
	// StartSession anchors the writer's timeline at the raw origin timestamp.
	StartSession(origin time.Duration)
	// Ready reports whether the stream input can take another sample.
	Ready(stream media.Stream) bool
	// Append hands over one sample stamped with its write-clock time.
	Append(frame media.Frame, pts time.Duration) (AppendStatus, error)
	// Err returns the terminal writer error, if any.
	Err() error
	// Finish flushes and releases the writer.
	Finish(ctx context.Context) error
}
