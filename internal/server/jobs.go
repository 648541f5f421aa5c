package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"docverify/internal/common"
	"docverify/internal/entity"
	"docverify/internal/export"
	"docverify/internal/pipeline"
	"docverify/internal/store"
)

type handlers struct {
	orc      *pipeline.Orchestrator
	exporter *export.Service
	logger   *slog.Logger
}

func newHandlers(orc *pipeline.Orchestrator, exporter *export.Service, logger *slog.Logger) *handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &handlers{orc: orc, exporter: exporter, logger: logger}
}

type submitRequest struct {
	JobID     string `json:"job_id,omitempty"`
	SourceRef string `json:"source_ref"`
	RuleSetID string `json:"rule_set_id"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobResponse struct {
	JobID             string                  `json:"job_id"`
	SourceRef         string                  `json:"source_ref"`
	RuleSetID         string                  `json:"rule_set_id"`
	Status            string                  `json:"status"`
	Attempts          map[string]int          `json:"attempts"`
	Fields            map[string]entity.Field `json:"fields,omitempty"`
	OverallConfidence float32                 `json:"overall_confidence"`
	LastError         *entity.ErrorInfo       `json:"last_error,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	CompletedAt       *time.Time              `json:"completed_at,omitempty"`
}

// SubmitJob handles POST /v1/jobs. It accepts the job and returns
// immediately; callers poll GET /v1/jobs/{id} for completion.
func (h *handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	jobID := uuid.Nil
	if s := strings.TrimSpace(req.JobID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.httpError(w, "job_id must be a UUID", http.StatusBadRequest)
			return
		}
		jobID = id
	}

	handle, err := h.orc.Submit(r.Context(), jobID, strings.TrimSpace(req.SourceRef), strings.TrimSpace(req.RuleSetID))
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		h.httpError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, pipeline.ErrConflict):
		h.httpError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("submit failed", "error", err)
		h.httpError(w, "submission failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:  handle.JobID.String(),
		Status: string(handle.Status),
	})
}

// GetJob handles GET /v1/jobs/{id}: a read-only job snapshot.
func (h *handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "job id must be a UUID", http.StatusBadRequest)
		return
	}

	job, err := h.orc.Status(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.httpError(w, "job not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("status read failed", "job_id", id, "error", err)
		h.httpError(w, "status read failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		JobID:             job.ID.String(),
		SourceRef:         job.SourceRef,
		RuleSetID:         job.RuleSetID,
		Status:            string(job.Status),
		Attempts:          job.Attempts,
		Fields:            job.Fields,
		OverallConfidence: job.OverallConfidence,
		LastError:         job.LastError,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
		CompletedAt:       job.CompletedAt,
	})
}

// CancelJob handles POST /v1/jobs/{id}/cancel.
func (h *handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "job id must be a UUID", http.StatusBadRequest)
		return
	}

	err = h.orc.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.httpError(w, "job not found", http.StatusNotFound)
		return
	case errors.Is(err, common.ErrInvalidInput):
		h.httpError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("cancel failed", "job_id", id, "error", err)
		h.httpError(w, "cancel failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ExportReview handles GET /v1/review/export: an XLSX workbook of jobs
// awaiting manual review.
func (h *handlers) ExportReview(w http.ResponseWriter, r *http.Request) {
	data, err := h.exporter.ExportReviewXLSX(r.Context())
	if err != nil {
		h.logger.Error("review export failed", "error", err)
		h.httpError(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="review.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) httpError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
