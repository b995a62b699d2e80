// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recording

import "errors"

var (
	ErrIllegalTransition = errors.New("recording: illegal transition")
	ErrWriterFailed      = errors.New("recording: writer failed")
	ErrNoWriter          = errors.New("recording: writer is required")
)
