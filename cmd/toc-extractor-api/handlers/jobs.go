package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lexatlas/toc-extractor/internal/observability"
	"github.com/lexatlas/toc-extractor/internal/pdf"
	"github.com/lexatlas/toc-extractor/internal/storage"
)

// defaultJobMaxPages caps background jobs submitted without max_pages.
const defaultJobMaxPages = 5

// JobService manages asynchronous extraction tickets.
type JobService interface {
	Submit(ctx context.Context, filename string, content []byte, maxPages int) (string, error)
	Status(ctx context.Context, ticketID string) (*storage.JobRecord, error)
	Delete(ctx context.Context, ticketID string) (bool, error)
}

// JobsHandler handles asynchronous PDF processing tickets.
type JobsHandler struct {
	logger         *observability.Logger
	jobs           JobService
	maxUploadBytes int64
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(logger *observability.Logger, jobs JobService, maxUploadBytes int64) *JobsHandler {
	return &JobsHandler{
		logger:         logger,
		jobs:           jobs,
		maxUploadBytes: maxUploadBytes,
	}
}

// TicketDTO represents the async submission receipt.
type TicketDTO struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// JobStatusDTO represents the polling response for a ticket.
type JobStatusDTO struct {
	TicketID string          `json:"ticket_id"`
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result"`
}

// Submit handles POST /api/v1/pdf-processing-jobs.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	content, filename, err := formFile(w, r, h.maxUploadBytes)
	if err != nil || !pdf.HasPDFExtension(filename) {
		h.writeError(w, http.StatusBadRequest, invalidFileMessage, "")
		return
	}

	maxPages, err := formMaxPages(r, defaultJobMaxPages)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "max_pages must be an integer", err.Error())
		return
	}

	ticketID, err := h.jobs.Submit(ctx, filename, content, maxPages)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", filename).Msg("Job submission failed")
		h.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	h.writeJSON(w, http.StatusAccepted, TicketDTO{
		TicketID: ticketID,
		Status:   string(storage.JobStatusPending),
	})
}

// Status handles GET /api/v1/status/{ticketId}.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticketID := chi.URLParam(r, "ticketId")

	record, err := h.jobs.Status(ctx, ticketID)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Ticket not found", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("Status lookup failed")
		h.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	h.writeJSON(w, http.StatusOK, JobStatusDTO{
		TicketID: record.ID,
		Status:   string(record.Status),
		Result:   record.Result,
	})
}

// Delete handles DELETE /api/v1/pdf-processing-jobs/{ticketId}.
func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticketID := chi.URLParam(r, "ticketId")

	deleted, err := h.jobs.Delete(ctx, ticketID)
	if err != nil {
		h.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("Ticket deletion failed")
		h.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "Ticket not found", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *JobsHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *JobsHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
