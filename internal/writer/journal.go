// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package writer provides a sample journal: a simple length-prefixed record
// file that accepts timestamped samples from a recording session without
// blocking the capture callback.
//
// Layout: the 8-byte magic "CAMJRNL1" followed by records of
//
//	stream uint8 | pts int64 (ns, big-endian) | len uint32 | payload
//
// Stream 0 marks the session start; its pts is the write-clock origin.
package writer

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/camcore/internal/log"
	"github.com/ManuGH/camcore/internal/media"
	"github.com/ManuGH/camcore/internal/recording"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// Magic opens every journal file.
const Magic = "CAMJRNL1"

// Extension is the file suffix of published journals.
const Extension = ".camj"

// DefaultQueueDepth bounds samples waiting for the disk.
const DefaultQueueDepth = 64

const streamSessionStart = 0

var (
	ErrClosed = errors.New("writer: journal closed")
	ErrFailed = errors.New("writer: journal failed")

	errOriginDropped = errors.New("session origin record dropped")
)

type record struct {
	stream  uint8
	pts     int64
	payload []byte
}

// Journal writes samples on a background goroutine. The file becomes visible
// at its final path only when Finish succeeds.
type Journal struct {
	path   string
	pf     *renameio.PendingFile
	out    *bufio.Writer
	queue  chan record
	done   chan struct{}
	logger zerolog.Logger

	// discard makes the loop drain the queue without writing.
	discard   atomic.Bool
	cleanOnce sync.Once

	mu      sync.RWMutex
	closed  bool
	err     error
	written int
}

var _ recording.Writer = (*Journal)(nil)

// NewJournal creates the pending journal for path and starts its writer loop.
func NewJournal(path string, depth int) (*Journal, error) {
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return nil, fmt.Errorf("create pending journal: %w", err)
	}
	return start(path, pf, pf, depth)
}

func start(path string, pf *renameio.PendingFile, sink io.Writer, depth int) (*Journal, error) {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	j := &Journal{
		path:   path,
		pf:     pf,
		out:    bufio.NewWriter(sink),
		queue:  make(chan record, depth),
		done:   make(chan struct{}),
		logger: log.WithComponent("writer").With().Str(log.FieldPath, path).Logger(),
	}
	if _, err := j.out.WriteString(Magic); err != nil {
		j.cleanup()
		return nil, fmt.Errorf("write journal header: %w", err)
	}
	go j.loop()
	return j, nil
}

// Path returns the final journal path.
func (j *Journal) Path() string { return j.path }

// StartSession records the write-clock origin. A journal without its origin
// record is unreadable, so failing to queue it fails the writer.
func (j *Journal) StartSession(origin time.Duration) {
	st, err := j.enqueue(record{stream: streamSessionStart, pts: int64(origin)})
	if st == recording.AppendWritten {
		return
	}
	if err == nil {
		err = errOriginDropped
	}
	j.fail(err)
}

// Ready reports whether another sample fits in the queue.
func (j *Journal) Ready(media.Stream) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return !j.closed && j.err == nil && len(j.queue) < cap(j.queue)
}

// Append queues one sample. A full queue is reported as not ready, never waited on.
func (j *Journal) Append(f media.Frame, pts time.Duration) (recording.AppendStatus, error) {
	payload := make([]byte, 0, f.Size())
	for _, p := range f.Planes {
		payload = append(payload, p.Bytes...)
	}
	return j.enqueue(record{stream: uint8(f.Stream), pts: int64(pts), payload: payload})
}

func (j *Journal) enqueue(r record) (recording.AppendStatus, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.err != nil {
		return recording.AppendFailed, j.err
	}
	if j.closed {
		return recording.AppendFailed, ErrClosed
	}
	select {
	case j.queue <- r:
		return recording.AppendWritten, nil
	default:
		return recording.AppendNotReady, nil
	}
}

// Err returns the terminal I/O error, if any.
func (j *Journal) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Written reports how many records reached the buffered file.
func (j *Journal) Written() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.written
}

// Finish drains the queue and atomically publishes the file. After a write
// failure the pending file is discarded and the failure returned.
func (j *Journal) Finish(ctx context.Context) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	select {
	case <-j.done:
	case <-ctx.Done():
		j.discard.Store(true)
		go func() {
			<-j.done
			j.cleanup()
		}()
		return ctx.Err()
	}

	if err := j.Err(); err != nil {
		j.cleanup()
		return err
	}
	if err := j.out.Flush(); err != nil {
		j.cleanup()
		return fmt.Errorf("flush journal: %w", err)
	}
	if j.pf == nil {
		return nil
	}
	if err := j.pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("publish journal: %w", err)
	}
	j.logger.Info().Str(log.FieldEvent, "writer.published").Int("records", j.Written()).Msg("journal published")
	return nil
}

// Abort stops the writer loop and discards the pending file. It also
// finishes the job of a Finish that gave up on its context.
func (j *Journal) Abort() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()

	j.discard.Store(true)
	<-j.done
	j.cleanup()
}

func (j *Journal) loop() {
	defer close(j.done)
	var hdr [13]byte
	for r := range j.queue {
		if j.discard.Load() || j.Err() != nil {
			continue
		}
		hdr[0] = r.stream
		binary.BigEndian.PutUint64(hdr[1:9], uint64(r.pts))
		binary.BigEndian.PutUint32(hdr[9:13], uint32(len(r.payload)))
		if _, err := j.out.Write(hdr[:]); err != nil {
			j.fail(err)
			continue
		}
		if _, err := j.out.Write(r.payload); err != nil {
			j.fail(err)
			continue
		}
		j.mu.Lock()
		j.written++
		j.mu.Unlock()
	}
}

func (j *Journal) fail(err error) {
	j.mu.Lock()
	if j.err == nil {
		j.err = fmt.Errorf("%w: %v", ErrFailed, err)
	}
	j.mu.Unlock()
	j.logger.Error().Err(err).Str(log.FieldEvent, "writer.failed").Msg("journal write failed")
}

func (j *Journal) cleanup() {
	if j.pf == nil {
		return
	}
	j.cleanOnce.Do(func() {
		if err := j.pf.Cleanup(); err != nil {
			j.logger.Debug().Err(err).Msg("cleanup pending journal")
		}
	})
}
