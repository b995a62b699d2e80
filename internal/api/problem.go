// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/camcore/internal/log"
)

// writeProblem writes an RFC 7807 problem details response. problemType is a
// short machine identifier such as "still/no_frame".
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	writeProblemWith(w, r, status, problemType, title, detail, nil)
}

// writeProblemWith adds extension members to the problem body. Standard
// members win over extensions of the same name.
func writeProblemWith(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string, ext map[string]any) {
	reqID := log.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(HeaderRequestID)
	}

	res := make(map[string]any, len(ext)+6)
	for k, v := range ext {
		res[k] = v
	}
	for k, v := range map[string]any{
		"type":      problemType,
		"title":     title,
		"status":    status,
		"requestId": reqID,
		"instance":  r.URL.EscapedPath(),
	} {
		res[k] = v
	}
	if detail != "" {
		res["detail"] = detail
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str("type", problemType).Int("status", status).Msg("failed to encode problem response")
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
