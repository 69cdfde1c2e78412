// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/lexatlas/toc-extractor/cmd/toc-extractor-api/handlers"
	"github.com/lexatlas/toc-extractor/cmd/toc-extractor-api/middleware"
	"github.com/lexatlas/toc-extractor/internal/config"
	"github.com/lexatlas/toc-extractor/internal/observability"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, extractor handlers.Extractor, jobs handlers.JobService) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(middleware.ProcessTime)
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","api_version":"1.0","service":"toc-extractor"}`))
	})

	// Initialize handlers
	extractionHandler := handlers.NewExtractionHandler(logger, extractor, cfg.Server.MaxUploadBytes)
	jobsHandler := handlers.NewJobsHandler(logger, jobs, cfg.Server.MaxUploadBytes)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Synchronous extraction routes
		r.Post("/extract", extractionHandler.Extract)
		r.Post("/extract-from-url", extractionHandler.ExtractFromURL)
		r.Post("/extract-from-browser", extractionHandler.ExtractFromBrowser)

		// Asynchronous ticket routes
		r.Route("/pdf-processing-jobs", func(r chi.Router) {
			r.Post("/", jobsHandler.Submit)
			r.Delete("/{ticketId}", jobsHandler.Delete)
		})
		r.Get("/status/{ticketId}", jobsHandler.Status)
	})

	return r
}
