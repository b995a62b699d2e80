// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package framecache holds the most recent video frame for on-demand readers.
//
// The cache is a single slot with overwrite semantics: a slow reader never
// causes a backlog, it simply sees the newest frame. The slot lock only
// guards the pointer swap and is never held across I/O or image work.
package framecache

import (
	"sync"
	"time"

	"github.com/ManuGH/camcore/internal/media"
	"github.com/ManuGH/camcore/internal/metrics"
)

// Cache is a single-slot, overwrite-on-publish frame holder. The zero value is
// ready to use.
type Cache struct {
	mu         sync.Mutex
	frame      media.Frame
	held       bool
	overwrites uint64
	published  time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Publish replaces the held frame unconditionally. Non-video frames are ignored.
func (c *Cache) Publish(f media.Frame) {
	if !f.IsVideo() {
		return
	}
	c.mu.Lock()
	replaced := c.held
	c.frame = f
	c.held = true
	c.published = time.Now()
	if replaced {
		c.overwrites++
	}
	c.mu.Unlock()

	if replaced {
		metrics.IncFrameCacheOverwrite()
	}
}

// Consume returns the held frame and clears the slot. A second call without an
// intervening Publish reports false.
func (c *Cache) Consume() (media.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.held {
		return media.Frame{}, false
	}
	f := c.frame
	c.frame = media.Frame{}
	c.held = false
	return f, true
}

// Peek returns the held frame without clearing the slot.
func (c *Cache) Peek() (media.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame, c.held
}

// Overwrites reports how many held frames were replaced before being consumed.
func (c *Cache) Overwrites() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overwrites
}

// LastPublished returns when the latest video frame arrived, or the zero time
// if none has.
func (c *Cache) LastPublished() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}
