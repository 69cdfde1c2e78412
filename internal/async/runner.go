package async

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/observability"
	"github.com/lexatlas/toc-extractor/internal/storage"
)

// defaultJobMaxPages mirrors the async submission default when a stored
// payload carries no usable page limit.
const defaultJobMaxPages = 5

// updateTimeout bounds terminal record updates. They run on a fresh context
// so an expired job context can never leave a ticket stuck in pending.
const updateTimeout = 5 * time.Second

// Pipeline runs the extraction for staged document bytes.
type Pipeline interface {
	ExtractFromBytes(ctx context.Context, filename string, content []byte, maxPages int, outputPath string) (*domain.ExtractionResult, string, error)
}

// jobSuccess is the result document stored on completion.
type jobSuccess struct {
	Message    string                   `json:"message"`
	TOCContent *domain.ExtractionResult `json:"toc_content"`
	OutputFile string                   `json:"output_file"`
}

// jobFailure is the result document stored on failure.
type jobFailure struct {
	Error string `json:"error"`
}

// Runner coordinates ticket submission and background execution. Per ticket
// the status moves pending to completed or failed, exactly once; failed
// tickets are terminal and must be resubmitted as new tickets.
type Runner struct {
	repo     *storage.JobRepository
	pipeline Pipeline
	queue    *WorkerQueue
	logger   *observability.Logger
}

// NewRunner creates a runner with its own worker pool.
func NewRunner(repo *storage.JobRepository, pipeline Pipeline, logger *observability.Logger, opts ...Option) *Runner {
	r := &Runner{
		repo:     repo,
		pipeline: pipeline,
		logger:   logger.WithOperation("jobs"),
	}
	r.queue = NewWorkerQueue(r.execute, logger, opts...)
	return r
}

// Submit stores the payload with status pending and schedules execution. The
// ticket id returns immediately; callers poll Status for the outcome.
func (r *Runner) Submit(ctx context.Context, filename string, content []byte, maxPages int) (string, error) {
	ticketID := uuid.New().String()

	payload := &storage.JobPayload{Filename: filename, MaxPages: maxPages}
	payload.SetContent(content)

	raw, err := storage.EncodeJobPayload(payload)
	if err != nil {
		return "", domain.StorageError("failed to encode job payload", err)
	}

	record := &storage.JobRecord{ID: ticketID, Status: storage.JobStatusPending, Payload: raw}
	if err := r.repo.Create(ctx, record); err != nil {
		return "", domain.StorageError("failed to store job record", err)
	}

	if err := r.queue.Enqueue(ctx, Job{TicketID: ticketID, SubmittedAt: time.Now()}); err != nil {
		r.failTicket(ticketID, err.Error())
		return "", err
	}

	r.logger.WithTicket(ticketID).Info().
		Str("filename", filename).
		Int("max_pages", maxPages).
		Int("bytes", len(content)).
		Msg("job submitted")

	return ticketID, nil
}

// Status returns the stored record for a ticket.
func (r *Runner) Status(ctx context.Context, ticketID string) (*storage.JobRecord, error) {
	return r.repo.GetByID(ctx, ticketID)
}

// Delete removes a ticket and reports whether it existed.
func (r *Runner) Delete(ctx context.Context, ticketID string) (bool, error) {
	return r.repo.Delete(ctx, ticketID)
}

// Shutdown stops intake and drains in-flight jobs.
func (r *Runner) Shutdown(ctx context.Context) {
	r.queue.Shutdown(ctx)
}

// execute runs one ticket end to end. Every exit path leaves the record in a
// terminal state, including panics; there is no automatic retry.
func (r *Runner) execute(ctx context.Context, job Job) {
	logger := r.logger.WithTicket(job.TicketID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("job execution panicked")
			r.failTicket(job.TicketID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	record, err := r.repo.GetByID(ctx, job.TicketID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Msg("ticket removed before execution")
			return
		}
		logger.Error().Err(err).Msg("failed to load job record")
		r.failTicket(job.TicketID, "failed to load job record: "+err.Error())
		return
	}

	if record.Status != storage.JobStatusPending {
		logger.Warn().Str("status", string(record.Status)).Msg("skipping ticket in terminal state")
		return
	}

	payload, err := storage.DecodeJobPayload(record.Payload)
	if err != nil {
		r.failTicket(job.TicketID, "invalid payload: "+err.Error())
		return
	}
	if payload == nil {
		r.failTicket(job.TicketID, "No payload found")
		return
	}
	if payload.Filename == "" || payload.PDFContent == "" {
		r.failTicket(job.TicketID, "Missing filename or pdf_content in payload")
		return
	}

	content, err := payload.DecodeContent()
	if err != nil {
		r.failTicket(job.TicketID, "invalid payload: "+err.Error())
		return
	}

	maxPages := payload.MaxPages
	if maxPages < 1 {
		maxPages = defaultJobMaxPages
	}

	started := time.Now()
	result, outputFile, err := r.pipeline.ExtractFromBytes(ctx, payload.Filename, content, maxPages, "")
	if err != nil {
		logger.Error().Err(err).Msg("job extraction failed")
		r.failTicket(job.TicketID, err.Error())
		return
	}

	r.completeTicket(job.TicketID, result, outputFile)
	logger.Info().
		Int("toc_entries", len(result.TOCEntries)).
		Bool("extraction_error", result.Error).
		Dur("duration", time.Since(started)).
		Msg("job completed")
}

func (r *Runner) failTicket(ticketID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	raw, _ := json.Marshal(jobFailure{Error: message})
	if err := r.repo.UpdateStatusAndResult(ctx, ticketID, storage.JobStatusFailed, raw); err != nil {
		r.logger.WithTicket(ticketID).Error().Err(err).Msg("failed to mark ticket failed")
	}
}

func (r *Runner) completeTicket(ticketID string, result *domain.ExtractionResult, outputFile string) {
	raw, err := json.Marshal(jobSuccess{
		Message:    "TOC extraction completed",
		TOCContent: result,
		OutputFile: outputFile,
	})
	if err != nil {
		r.failTicket(ticketID, "failed to encode result: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if err := r.repo.UpdateStatusAndResult(ctx, ticketID, storage.JobStatusCompleted, raw); err != nil {
		r.logger.WithTicket(ticketID).Error().Err(err).Msg("failed to mark ticket completed")
	}
}
