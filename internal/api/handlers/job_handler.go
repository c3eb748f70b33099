package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/docforge/docforge/internal/core/ingestion"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
	"github.com/docforge/docforge/internal/services"
)

type JobHandler struct {
	jobs     *services.JobService
	pipeline *ingestion.Pipeline
	log      *logger.Logger
}

func NewJobHandler(jobs *services.JobService, pipeline *ingestion.Pipeline, log *logger.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, pipeline: pipeline, log: log}
}

// Status reports the job's state and progress percentage for client polling.
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	status, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Retry redrives a failed job. A job that is not failed answers 409; one
// with no retry record or whose raw file is gone answers 404 with
// accepted=false.
func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	accepted, err := h.pipeline.Retry(r.Context(), id)
	if errors.Is(err, ingestion.ErrNotRetryable) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !accepted {
		respondJSON(w, http.StatusNotFound, map[string]bool{"accepted": false})
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// SubmitRelayed receives a job relayed from another node and feeds it into
// the local pipeline. Mounted only on nodes that run the pipeline, behind
// the shared-token check.
func (h *JobHandler) SubmitRelayed(w http.ResponseWriter, r *http.Request) {
	var job models.UploadJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		respondError(w, http.StatusBadRequest, "invalid job payload")
		return
	}
	if job.FileID == 0 || job.FilePath == "" {
		respondError(w, http.StatusBadRequest, "incomplete job payload")
		return
	}
	if err := h.pipeline.Submit(r.Context(), job); err != nil {
		respondError(w, http.StatusServiceUnavailable, "processing queue unavailable")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}
