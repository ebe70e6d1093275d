// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/registry"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

var errBadRequest = errors.New("bad request")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, job.ErrMissingConfig),
		errors.Is(err, job.ErrSourceMissing),
		errors.Is(err, job.ErrInvalidPatch),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrSpawnFailure):
		return http.StatusBadGateway
	case errors.Is(err, registry.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and answers with its mapped status. Internal errors do
// not leak their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	logger := log.WithContext(r.Context(), log.WithComponent("api"))
	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Str(log.FieldPath, r.URL.Path).Int("status", code).Msg("request failed")
		if code == http.StatusInternalServerError {
			msg = "internal server error"
		}
	} else {
		logger.Debug().Err(err).Str(log.FieldPath, r.URL.Path).Int("status", code).Msg("request rejected")
	}
	writeJSON(w, code, errorBody{Error: msg, RequestID: log.RequestIDFromContext(r.Context())})
}

// decodeJSON reads a bounded JSON body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}
