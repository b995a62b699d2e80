// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api is the operator HTTP surface of camcored: still capture,
// recording and image-stream control, health, metrics and an event feed.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/camcore/internal/bus"
	"github.com/ManuGH/camcore/internal/capture"
	"github.com/ManuGH/camcore/internal/health"
	"github.com/ManuGH/camcore/internal/log"
	"github.com/ManuGH/camcore/internal/recording"
	"github.com/ManuGH/camcore/internal/still"
)

// StillCapturer produces composed stills.
type StillCapturer interface {
	Capture(ctx context.Context, opts still.CaptureOptions) (still.Result, error)
}

// Camera is the control half of the capture controller.
type Camera interface {
	StartRecording(ctx context.Context, w recording.Writer, opts ...recording.Option) (*recording.Session, error)
	PauseRecording() error
	ResumeRecording() error
	StopRecording(ctx context.Context) (*recording.Session, error)
	Recording() *recording.Session

	StartImageStream()
	StopImageStream()
	ReceivedImageStreamData()
	Streaming() bool
}

var _ Camera = (*capture.Controller)(nil)

// WriterFactory opens the sample writer for a new recording session.
type WriterFactory func(sessionID string) (recording.Writer, error)

// Config tunes the HTTP surface.
type Config struct {
	StillRatePerMinute int
}

// Deps are the collaborators the handlers drive.
type Deps struct {
	Camera  Camera
	Stills  StillCapturer
	Writers WriterFactory
	// Events feeds /api/v1/events. Nil disables the endpoint.
	Events bus.Bus
	// Throttle reports image-stream backpressure on /api/v1/status.
	Throttle ThrottleStats
	// Frames reports frame-cache overwrites on /api/v1/status.
	Frames FrameStats
	// Health serves /healthz and /readyz. Nil answers liveness only.
	Health *health.Manager
}

// FrameStats is the read side of the frame cache.
type FrameStats interface {
	Overwrites() uint64
}

// ThrottleStats is the read side of the image-stream throttle.
type ThrottleStats interface {
	Pending() int
	Ceiling() int
	Dropped() uint64
}

type Server struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger
	router chi.Router
}

func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Tracing("github.com/ManuGH/camcore/internal/api"))
	r.Use(Metrics)

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
	} else {
		r.Get("/healthz", s.handleHealth)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.With(RateLimit(s.cfg.StillRatePerMinute, time.Minute)).Post("/still", s.handleStill)

		r.Route("/recording", func(r chi.Router) {
			r.Post("/start", s.handleRecordingStart)
			r.Post("/pause", s.handleRecordingPause)
			r.Post("/resume", s.handleRecordingResume)
			r.Post("/stop", s.handleRecordingStop)
		})

		r.Route("/stream", func(r chi.Router) {
			r.Post("/start", s.handleStreamStart)
			r.Post("/stop", s.handleStreamStop)
			r.Post("/ack", s.handleStreamAck)
		})

		if s.deps.Events != nil {
			r.Get("/events", s.handleEvents)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "not_found", "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Streaming     bool   `json:"streaming"`
	PendingFrames int    `json:"pendingFrames"`
	MaxPending    int    `json:"maxPendingFrames"`
	DroppedFrames uint64 `json:"droppedFrames"`
	// CacheOverwrites counts cached frames no renderer picked up in time.
	CacheOverwrites     uint64 `json:"cacheOverwrites"`
	RecordingID         string `json:"recordingId,omitempty"`
	RecordingState      string `json:"recordingState,omitempty"`
	RecordingPositionMs int64  `json:"recordingPositionMs,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := statusResponse{Streaming: s.deps.Camera.Streaming()}
	if t := s.deps.Throttle; t != nil {
		res.PendingFrames = t.Pending()
		res.MaxPending = t.Ceiling()
		res.DroppedFrames = t.Dropped()
	}
	if f := s.deps.Frames; f != nil {
		res.CacheOverwrites = f.Overwrites()
	}
	if sess := s.deps.Camera.Recording(); sess != nil {
		res.RecordingID = sess.ID()
		res.RecordingState = string(sess.State())
		res.RecordingPositionMs = sess.Position().Milliseconds()
	}
	writeJSON(w, r, http.StatusOK, res)
}
