// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ManuGH/camcore/internal/capture"
	"github.com/ManuGH/camcore/internal/log"
	"github.com/ManuGH/camcore/internal/recording"
	"github.com/ManuGH/camcore/internal/still"
)

// maxStillRequestBytes bounds the JSON body, which carries the overlay PNG.
const maxStillRequestBytes = 32 << 20

type stillResponse struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
	Image  []byte `json:"image"`
}

// handleStill composes a still. The JPEG is returned raw unless the client
// asks for JSON, in which case it is base64 encoded.
func (s *Server) handleStill(w http.ResponseWriter, r *http.Request) {
	var opts still.CaptureOptions
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStillRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "still/invalid_request", "Bad Request", err.Error())
		return
	}

	res, err := s.deps.Stills.Capture(r.Context(), opts)
	if err != nil {
		s.stillProblem(w, r, res, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, r, http.StatusOK, stillResponse{
			Width:  res.Width,
			Height: res.Height,
			Size:   len(res.Bytes),
			Image:  res.Bytes,
		})
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Bytes)))
	w.Header().Set("X-Image-Width", strconv.Itoa(res.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(res.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Bytes)
}

// stillProblem maps a capture error. res carries the partial dimensions a
// failed encode still reports.
func (s *Server) stillProblem(w http.ResponseWriter, r *http.Request, res still.Result, err error) {
	switch {
	case errors.Is(err, still.ErrInvalidOptions):
		writeProblem(w, r, http.StatusBadRequest, "still/invalid_options", "Bad Request", err.Error())
	case errors.Is(err, still.ErrNoFrame), errors.Is(err, still.ErrNoDevice):
		writeProblem(w, r, http.StatusServiceUnavailable, "still/unavailable", "Service Unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, r, http.StatusGatewayTimeout, "still/timeout", "Gateway Timeout", err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).Msg("still request canceled")
	case errors.Is(err, still.ErrDecodeFailed):
		writeProblem(w, r, http.StatusBadGateway, "still/decode_failed", "Bad Gateway", err.Error())
	case errors.Is(err, still.ErrCompressionFailed):
		writeProblemWith(w, r, http.StatusInternalServerError, "still/compression_failed", "Internal Server Error", err.Error(),
			map[string]any{"width": res.Width, "height": res.Height})
	default:
		writeProblem(w, r, http.StatusInternalServerError, "still/failed", "Internal Server Error", err.Error())
	}
}

type recordingResponse struct {
	SessionID  string `json:"sessionId"`
	State      string `json:"state"`
	PositionMs int64  `json:"positionMs"`
	Failure    string `json:"failure,omitempty"`
}

func sessionResponse(sess *recording.Session) recordingResponse {
	res := recordingResponse{
		SessionID:  sess.ID(),
		State:      string(sess.State()),
		PositionMs: sess.Position().Milliseconds(),
	}
	if err := sess.Failure(); err != nil {
		res.Failure = err.Error()
	}
	return res
}

type aborter interface {
	Abort()
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if s.deps.Writers == nil {
		writeProblem(w, r, http.StatusServiceUnavailable, "recording/unavailable", "Service Unavailable", "no recording writer configured")
		return
	}
	if cur := s.deps.Camera.Recording(); cur != nil && cur.State() != recording.StateFailed {
		writeProblem(w, r, http.StatusConflict, "recording/active", "Conflict", capture.ErrRecordingActive.Error())
		return
	}

	id := uuid.NewString()
	wr, err := s.deps.Writers(id)
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldSessionID, id).Msg("open recording writer")
		writeProblem(w, r, http.StatusInternalServerError, "recording/writer", "Internal Server Error", err.Error())
		return
	}

	sess, err := s.deps.Camera.StartRecording(r.Context(), wr, recording.WithID(id))
	if err != nil {
		if a, ok := wr.(aborter); ok {
			a.Abort()
		}
		s.recordingProblem(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sessionResponse(sess))
}

func (s *Server) handleRecordingPause(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Camera.PauseRecording(); err != nil {
		s.recordingProblem(w, r, err)
		return
	}
	s.writeCurrentSession(w, r)
}

func (s *Server) handleRecordingResume(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Camera.ResumeRecording(); err != nil {
		s.recordingProblem(w, r, err)
		return
	}
	s.writeCurrentSession(w, r)
}

func (s *Server) writeCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess := s.deps.Camera.Recording()
	if sess == nil {
		s.recordingProblem(w, r, capture.ErrNoRecording)
		return
	}
	writeJSON(w, r, http.StatusOK, sessionResponse(sess))
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Camera.StopRecording(r.Context())
	if sess == nil {
		s.recordingProblem(w, r, err)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldSessionID, sess.ID()).Msg("stop recording")
		writeProblem(w, r, http.StatusInternalServerError, "recording/finish_failed", "Internal Server Error", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, sessionResponse(sess))
}

func (s *Server) recordingProblem(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, capture.ErrNoRecording):
		writeProblem(w, r, http.StatusNotFound, "recording/none", "Not Found", err.Error())
	case errors.Is(err, capture.ErrRecordingActive), errors.Is(err, recording.ErrIllegalTransition):
		writeProblem(w, r, http.StatusConflict, "recording/conflict", "Conflict", err.Error())
	default:
		writeProblem(w, r, http.StatusInternalServerError, "recording/failed", "Internal Server Error", err.Error())
	}
}

func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	s.deps.Camera.StartImageStream()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	s.deps.Camera.StopImageStream()
	w.WriteHeader(http.StatusNoContent)
}

// handleStreamAck releases one in-flight image-stream frame.
func (s *Server) handleStreamAck(w http.ResponseWriter, r *http.Request) {
	s.deps.Camera.ReceivedImageStreamData()
	w.WriteHeader(http.StatusNoContent)
}
