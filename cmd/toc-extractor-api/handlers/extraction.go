// Package handlers provides HTTP handlers for the TOC extractor API.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/observability"
	"github.com/lexatlas/toc-extractor/internal/pdf"
)

// invalidFileMessage matches the upload validation error exposed by the
// public API contract.
const invalidFileMessage = "Invalid file: Please upload a PDF document"

// Page limits applied when the client does not send max_pages.
const (
	defaultUploadMaxPages  = 10
	defaultURLMaxPages     = 5
	defaultBrowserMaxPages = 5
)

// Extractor runs the synchronous extraction pipeline.
type Extractor interface {
	ExtractFromBytes(ctx context.Context, filename string, content []byte, maxPages int, outputPath string) (*domain.ExtractionResult, string, error)
	ExtractFromURL(ctx context.Context, pdfURL string, maxPages int, outputPath string) (*domain.ExtractionResult, string, error)
}

// ExtractionHandler handles synchronous TOC extraction requests.
type ExtractionHandler struct {
	logger         *observability.Logger
	extractor      Extractor
	maxUploadBytes int64
}

// NewExtractionHandler creates a new extraction handler.
func NewExtractionHandler(logger *observability.Logger, extractor Extractor, maxUploadBytes int64) *ExtractionHandler {
	return &ExtractionHandler{
		logger:         logger,
		extractor:      extractor,
		maxUploadBytes: maxUploadBytes,
	}
}

// TOCURLRequestDTO represents the extract-from-url request body.
type TOCURLRequestDTO struct {
	PDFURL     string `json:"pdf_url"`
	OutputFile string `json:"output_file,omitempty"`
	MaxPages   int    `json:"max_pages,omitempty"`
}

// TOCResponseDTO represents the synchronous extraction response.
type TOCResponseDTO struct {
	Success    bool                     `json:"success"`
	TOCContent *domain.ExtractionResult `json:"toc_content"`
	OutputFile string                   `json:"output_file"`
}

// Extract handles POST /api/v1/extract.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	content, filename, err := formFile(w, r, h.maxUploadBytes)
	if err != nil || !pdf.HasPDFExtension(filename) {
		h.writeError(w, http.StatusBadRequest, invalidFileMessage, "")
		return
	}

	maxPages, err := formMaxPages(r, defaultUploadMaxPages)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "max_pages must be an integer", err.Error())
		return
	}

	result, outputFile, err := h.extractor.ExtractFromBytes(ctx, filename, content, maxPages, r.FormValue("output_file"))
	if err != nil {
		h.logger.Error().Err(err).Str("filename", filename).Msg("Synchronous extraction failed")
		h.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	h.writeJSON(w, http.StatusOK, TOCResponseDTO{
		Success:    true,
		TOCContent: result,
		OutputFile: outputFile,
	})
}

// ExtractFromURL handles POST /api/v1/extract-from-url.
func (h *ExtractionHandler) ExtractFromURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO TOCURLRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "invalid request body", err.Error())
		return
	}

	if !validHTTPURL(reqDTO.PDFURL) {
		h.writeError(w, http.StatusUnprocessableEntity, "pdf_url must be a valid absolute URL", "")
		return
	}

	maxPages := reqDTO.MaxPages
	if maxPages <= 0 {
		maxPages = defaultURLMaxPages
	}

	result, outputFile, err := h.extractor.ExtractFromURL(ctx, reqDTO.PDFURL, maxPages, reqDTO.OutputFile)
	if err != nil {
		h.logger.Error().Err(err).Str("pdf_url", reqDTO.PDFURL).Msg("URL extraction failed")
		h.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	h.writeJSON(w, http.StatusOK, TOCResponseDTO{
		Success:    true,
		TOCContent: result,
		OutputFile: outputFile,
	})
}

// ExtractFromBrowser handles POST /api/v1/extract-from-browser.
//
// Browser form uploads carry the document name in a dedicated filename
// field, which is validated instead of the multipart part's own name.
func (h *ExtractionHandler) ExtractFromBrowser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	content, _, err := formFile(w, r, h.maxUploadBytes)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, invalidFileMessage, "")
		return
	}

	filename := r.FormValue("filename")
	if filename == "" || !pdf.HasPDFExtension(filename) {
		h.writeError(w, http.StatusBadRequest, invalidFileMessage, "")
		return
	}

	maxPages, err := formMaxPages(r, defaultBrowserMaxPages)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "max_pages must be an integer", err.Error())
		return
	}

	result, outputFile, err := h.extractor.ExtractFromBytes(ctx, filename, content, maxPages, r.FormValue("output_file"))
	if err != nil {
		h.logger.Error().Err(err).Str("filename", filename).Msg("Browser extraction failed")
		h.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	h.writeJSON(w, http.StatusOK, TOCResponseDTO{
		Success:    true,
		TOCContent: result,
		OutputFile: outputFile,
	})
}

func (h *ExtractionHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ExtractionHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}

// formFile reads the uploaded "file" multipart part after bounding the
// request body to maxBytes.
func formFile(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, "", fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("read file part: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read file part: %w", err)
	}
	return content, header.Filename, nil
}

// formMaxPages parses the max_pages form value, falling back to the
// endpoint default when absent.
func formMaxPages(r *http.Request, fallback int) (int, error) {
	raw := r.FormValue("max_pages")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid max_pages %q", raw)
	}
	if n <= 0 {
		return fallback, nil
	}
	return n, nil
}

// validHTTPURL reports whether raw parses as an absolute http(s) URL.
func validHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
