package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/jobs"
	"ingestcore/internal/metrics"
	"ingestcore/internal/sources"
)

type enqueueRequest struct {
	Queue   string         `json:"queue"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Type != ingestmodel.JobTypeIngest && req.Type != ingestmodel.JobTypeChecksumUpdate && req.Type != ingestmodel.JobTypePrune {
		respondError(w, http.StatusBadRequest, errors.New("unknown job type"))
		return
	}
	repo, ok := s.Jobs[req.Queue]
	if !ok {
		respondError(w, http.StatusBadRequest, errors.New("unknown queue"))
		return
	}
	var inline struct {
		Sources []sources.Spec `json:"sources"`
	}
	raw, _ := json.Marshal(req.Payload)
	if err := json.Unmarshal(raw, &inline); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	for _, spec := range inline.Sources {
		if err := spec.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}
	job, err := repo.Enqueue(r.Context(), req.Type, req.Payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	metrics.JobEnqueued(req.Queue, req.Type)
	respondJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	queue := r.URL.Query().Get("queue")
	if queue != "" {
		repo, ok := s.Jobs[queue]
		if !ok {
			respondError(w, http.StatusBadRequest, errors.New("unknown queue"))
			return
		}
		list, err := repo.List(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"jobs": list})
		return
	}

	var all []ingestmodel.Job
	for _, repo := range s.Jobs {
		list, err := repo.List(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		all = append(all, list...)
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": all})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	repo, ok := s.findJob(r, id)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("job not found"))
		return
	}
	job, _, err := repo.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	repo, ok := s.findJob(r, id)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("job not found"))
		return
	}
	canceled, err := repo.Cancel(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !canceled {
		respondError(w, http.StatusConflict, jobs.ErrInvalidTransition)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"canceled": true})
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	repo, ok := s.findJob(r, id)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("job not found"))
		return
	}
	retried, err := repo.Retry(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !retried {
		respondError(w, http.StatusConflict, jobs.ErrInvalidTransition)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"retried": true})
}

func (s *Server) handleCreateManifest(w http.ResponseWriter, r *http.Request) {
	var manifest ingestmodel.Manifest
	if err := json.NewDecoder(r.Body).Decode(&manifest); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	key, err := s.Artifacts.Put(r.Context(), manifest)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"artifact_key": key})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func parseJobID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
