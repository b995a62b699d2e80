// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/camcore/internal/bus"
	"github.com/ManuGH/camcore/internal/log"
)

var (
	defaultEventTopics = []string{
		bus.TopicCameraInitialized,
		bus.TopicCameraError,
		bus.TopicRecordingState,
	}
	knownEventTopics = append(slices.Clone(defaultEventTopics), bus.TopicImageStream)
)

type topicMessage struct {
	topic string
	msg   bus.Message
}

// handleEvents streams bus events as server-sent events. Clients pick topics
// with repeated ?topic= parameters; image-stream frames are opt-in.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	topics := r.URL.Query()["topic"]
	if len(topics) == 0 {
		topics = defaultEventTopics
	}
	for _, t := range topics {
		if !slices.Contains(knownEventTopics, t) {
			writeProblem(w, r, http.StatusBadRequest, "events/unknown_topic", "Bad Request", "unknown topic "+t)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, r, http.StatusInternalServerError, "events/unsupported", "Internal Server Error", "streaming unsupported")
		return
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	out := make(chan topicMessage)

	for _, topic := range topics {
		sub, err := s.deps.Events.Subscribe(ctx, topic)
		if err != nil {
			writeProblem(w, r, http.StatusServiceUnavailable, "events/unavailable", "Service Unavailable", err.Error())
			return
		}
		defer func() { _ = sub.Close() }()

		wg.Add(1)
		go func(topic string, sub bus.Subscriber) {
			defer wg.Done()
			for msg := range sub.C() {
				select {
				case out <- topicMessage{topic: topic, msg: msg}:
				case <-ctx.Done():
					return
				}
			}
		}(topic, sub)
	}

	// the feed outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := log.WithComponentFromContext(ctx, "api")
	for {
		select {
		case <-ctx.Done():
			return
		case tm := <-out:
			data, err := json.Marshal(tm.msg)
			if err != nil {
				logger.Warn().Err(err).Str("topic", tm.topic).Msg("skip unencodable event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", tm.topic, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
