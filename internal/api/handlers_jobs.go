// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/validate"
	"github.com/go-chi/chi/v5"
)

type streamRequest struct {
	StreamURL string `json:"streamUrl"`
}

type autoRestartRequest struct {
	Enabled *bool `json:"enabled"`
}

// jobContext tags the request context with the job id from the route.
func jobContext(r *http.Request) (*http.Request, string) {
	id := chi.URLParam(r, "id")
	return r.WithContext(log.ContextWithJobID(r.Context(), id)), id
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	rec := s.jobs.Create(r.Context())
	writeJSON(w, http.StatusCreated, rec.View())
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.Statuses())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	view, err := s.jobs.Status(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// respond writes the job's current view after a successful mutation.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, id string) {
	view, err := s.jobs.Status(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetStream(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	var req streamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.StreamURL = strings.TrimSpace(req.StreamURL)
	v := validate.New()
	v.URL("streamUrl", req.StreamURL, []string{"rtmp", "rtmps", "srt", "udp", "rtp", "http", "https"})
	if err := v.Err(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if _, err := s.jobs.SetStreamURL(r.Context(), id, req.StreamURL); err != nil {
		writeError(w, r, err)
		return
	}
	s.respond(w, r, id)
}

func (s *Server) handleSetMetadata(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	var patch job.MetadataPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.jobs.SetMetadata(r.Context(), id, patch); err != nil {
		writeError(w, r, err)
		return
	}
	s.respond(w, r, id)
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	var patch job.SchedulePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.jobs.SetSchedule(r.Context(), id, patch); err != nil {
		writeError(w, r, err)
		return
	}
	s.respond(w, r, id)
}

func (s *Server) handleSetAutoRestart(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	var req autoRestartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, r, fmt.Errorf("%w: enabled is required", errBadRequest))
		return
	}
	if _, err := s.jobs.SetAutoRestart(r.Context(), id, *req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	s.respond(w, r, id)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	if err := s.jobs.Start(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.respond(w, r, id)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	if err := s.jobs.Stop(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.respond(w, r, id)
}
