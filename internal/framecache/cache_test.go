// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package framecache

import (
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/camcore/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func videoFrame(pts time.Duration) media.Frame {
	return media.Frame{Stream: media.StreamVideo, Format: media.FormatBGRA, Width: 1, Height: 1, PTS: pts, Ready: true}
}

func TestConsumeIsDestructive(t *testing.T) {
	c := New()
	c.Publish(videoFrame(1))

	got, ok := c.Consume()
	require.True(t, ok)
	assert.Equal(t, time.Duration(1), got.PTS)

	_, ok = c.Consume()
	assert.False(t, ok, "second consume without publish must report none")
}

func TestPublishOverwrites(t *testing.T) {
	c := New()
	c.Publish(videoFrame(1))
	c.Publish(videoFrame(2))
	c.Publish(videoFrame(3))

	got, ok := c.Consume()
	require.True(t, ok)
	assert.Equal(t, time.Duration(3), got.PTS)
	assert.Equal(t, uint64(2), c.Overwrites())
}

func TestPeekKeepsFrame(t *testing.T) {
	c := New()
	_, ok := c.Peek()
	assert.False(t, ok)

	c.Publish(videoFrame(7))
	p, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, time.Duration(7), p.PTS)

	got, ok := c.Consume()
	require.True(t, ok)
	assert.Equal(t, p.PTS, got.PTS)
}

func TestAudioFramesAreIgnored(t *testing.T) {
	c := New()
	c.Publish(media.Frame{Stream: media.StreamAudio, PTS: 5})
	_, ok := c.Consume()
	assert.False(t, ok)
}

func TestConcurrentPublishConsume(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.Publish(videoFrame(time.Duration(i)))
		}
	}()
	var last time.Duration = -1
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if f, ok := c.Consume(); ok {
				// a single producer publishes in order, so reads never go backwards
				assert.Greater(t, f.PTS, last)
				last = f.PTS
			}
		}
	}()
	wg.Wait()
}

func TestLastPublished(t *testing.T) {
	c := New()
	assert.True(t, c.LastPublished().IsZero())

	before := time.Now()
	c.Publish(videoFrame(1))
	assert.False(t, c.LastPublished().Before(before))

	c.Publish(media.Frame{Stream: media.StreamAudio, Ready: true})
	_, _ = c.Consume()
	assert.False(t, c.LastPublished().IsZero(), "consume keeps the arrival time")
}
