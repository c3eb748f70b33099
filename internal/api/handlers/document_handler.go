package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	middleware "github.com/docforge/docforge/internal/api/middlewares"
	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/core/ingestion"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
	"github.com/docforge/docforge/internal/services"
)

const maxUploadBytes = 52 << 20

type DocumentHandler struct {
	db        core.DbClient
	users     *services.UserService
	documents *services.DocumentService
	jobs      *services.JobService
	placement *services.PlacementService
	runner    ingestion.Runner
	embedder  *ingestion.Embedder
	log       *logger.Logger
}

func NewDocumentHandler(
	db core.DbClient,
	users *services.UserService,
	documents *services.DocumentService,
	jobs *services.JobService,
	placement *services.PlacementService,
	runner ingestion.Runner,
	embedder *ingestion.Embedder,
	log *logger.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		db:        db,
		users:     users,
		documents: documents,
		jobs:      jobs,
		placement: placement,
		runner:    runner,
		embedder:  embedder,
		log:       log,
	}
}

// Upload receives a multipart file, places it, records the job and retry
// snapshot, and hands the work to the pipeline. It answers 202 immediately;
// clients poll the job endpoint for progress.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	companyID, _ := middleware.CompanyID(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	teamID, err := strconv.ParseInt(r.FormValue("team_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "team_id is required")
		return
	}
	parentID := models.RootParentID
	if v := r.FormValue("parent_id"); v != "" {
		if parentID, err = strconv.ParseInt(v, 10, 64); err != nil {
			respondError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
	}

	team, err := h.users.GetTeam(r.Context(), teamID)
	if err != nil || team == nil || team.CompanyID != companyID {
		respondError(w, http.StatusForbidden, "unknown team")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read file")
		return
	}
	originalName := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := h.documents.CreatePlaceholder(r.Context(), teamID, parentID, originalName, userID, int64(len(data)))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	localPath, err := h.placement.Place(r.Context(), team.StorageUUID, doc.ID, originalName, contentType, data)
	if err != nil {
		_ = h.db.DeleteDocument(r.Context(), doc.ID)
		h.log.Error("placement failed", "file", originalName, "error", err)
		respondError(w, http.StatusInternalServerError, "could not store file")
		return
	}

	job := models.UploadJob{
		FilePath:      localPath,
		FileFullName:  services.FileName(doc.ID, originalName),
		MimeType:      contentType,
		FileID:        doc.ID,
		OriginalName:  originalName,
		TeamID:        teamID,
		UserID:        userID,
		CompanyID:     companyID,
		TenantUUID:    team.StorageUUID,
		FileSizeBytes: int64(len(data)),
		ParentID:      parentID,
	}
	if err := h.jobs.Create(r.Context(), &models.IngestionJob{
		ID:        doc.ID,
		UserID:    userID,
		TeamID:    teamID,
		CompanyID: companyID,
		Status:    models.StatusUploading,
	}); err != nil {
		// No retry record exists yet, so nothing would ever reclaim the
		// placed file or the placeholder row. Undo both before answering.
		_ = h.db.DeleteDocument(r.Context(), doc.ID)
		h.placement.RemoveLocal(localPath)
		if h.placement.CloudEnabled() {
			h.placement.RemoveObject(r.Context(), job.FileFullName)
		}
		h.log.Error("could not create job", "job_id", doc.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "could not create job")
		return
	}
	if err := h.db.SaveRetryRecord(r.Context(), job.Record(time.Now())); err != nil {
		h.log.Error("could not save retry record", "job_id", doc.ID, "error", err)
	}

	if err := h.runner.Submit(r.Context(), job); err != nil {
		respondError(w, http.StatusServiceUnavailable, "processing queue unavailable")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   doc.ID,
		"document": doc,
	})
}

type folderRequest struct {
	TeamID   int64  `json:"team_id"`
	ParentID int64  `json:"parent_id"`
	Name     string `json:"name"`
}

func (h *DocumentHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req folderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	doc, err := h.documents.CreateFolder(r.Context(), req.TeamID, req.ParentID, req.Name, userID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, err := strconv.ParseInt(r.URL.Query().Get("team_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "team_id is required")
		return
	}
	parentID := models.RootParentID
	if v := r.URL.Query().Get("parent_id"); v != "" {
		if parentID, err = strconv.ParseInt(v, 10, 64); err != nil {
			respondError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
	}
	docs, err := h.documents.List(r.Context(), teamID, parentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.documents.Rename(r.Context(), id, req.Name); err != nil {
		respondDocumentErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *DocumentHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		NewParentID int64 `json:"new_parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.documents.Move(r.Context(), id, req.NewParentID); err != nil {
		respondDocumentErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *DocumentHandler) SetTrashed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Trashed bool `json:"trashed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.documents.SetTrashed(r.Context(), id, req.Trashed); err != nil {
		respondDocumentErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Delete removes a node (and subtree) and queues vector cleanup for every
// deleted file.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		respondDocumentErr(w, err)
		return
	}
	team, err := h.users.GetTeam(r.Context(), doc.TeamID)
	if err != nil || team == nil {
		respondError(w, http.StatusInternalServerError, "could not resolve team")
		return
	}

	files, err := h.documents.Delete(r.Context(), id)
	if err != nil {
		respondDocumentErr(w, err)
		return
	}
	for _, f := range files {
		h.placement.RemoveLocal(filepath.Join(h.placement.Root(), team.StorageUUID, services.FileName(f.ID, f.Name)))
		h.placement.RemoveObject(r.Context(), services.FileName(f.ID, f.Name))
		h.embedder.DeleteEmbeddings(f.ID, team.StorageUUID)
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func respondDocumentErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidMove):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
