package async

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/observability"
	"github.com/lexatlas/toc-extractor/internal/storage"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Format: "json"})
}

func openTestRepo(t *testing.T) (*sql.DB, *storage.JobRepository) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "jobs.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, storage.NewJobRepository(db)
}

type stubPipeline struct {
	mu           sync.Mutex
	result       *domain.ExtractionResult
	output       string
	err          error
	panicMessage string
	calls        int
	lastFilename string
	lastMaxPages int
	lastContent  []byte
}

func (s *stubPipeline) ExtractFromBytes(ctx context.Context, filename string, content []byte, maxPages int, outputPath string) (*domain.ExtractionResult, string, error) {
	s.mu.Lock()
	s.calls++
	s.lastFilename = filename
	s.lastMaxPages = maxPages
	s.lastContent = content
	s.mu.Unlock()

	if s.panicMessage != "" {
		panic(s.panicMessage)
	}
	if s.err != nil {
		return nil, "", s.err
	}
	return s.result, s.output, nil
}

func (s *stubPipeline) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitForTerminal(t *testing.T, repo *storage.JobRepository, ticketID string) *storage.JobRecord {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, err := repo.GetByID(context.Background(), ticketID)
		require.NoError(t, err)
		if record.Status != storage.JobStatusPending {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ticket %s never left pending", ticketID)
	return nil
}

func successResult() *domain.ExtractionResult {
	res := domain.NewExtractionResult()
	res.TOCEntries = append(res.TOCEntries, domain.TOCEntry{RawText: "entry .......... Página 2"})
	return res
}

func TestSubmitRunsToCompletion(t *testing.T) {
	_, repo := openTestRepo(t)
	pipeline := &stubPipeline{result: successResult()}
	runner := NewRunner(repo, pipeline, testLogger(), WithWorkers(1))
	defer runner.Shutdown(context.Background())

	ticketID, err := runner.Submit(context.Background(), "doc.pdf", []byte("%PDF-1.4"), 5)
	require.NoError(t, err)
	require.NotEmpty(t, ticketID)

	record := waitForTerminal(t, repo, ticketID)
	assert.Equal(t, storage.JobStatusCompleted, record.Status)

	var result jobSuccess
	require.NoError(t, json.Unmarshal(record.Result, &result))
	assert.Equal(t, "TOC extraction completed", result.Message)
	require.NotNil(t, result.TOCContent)
	assert.Len(t, result.TOCContent.TOCEntries, 1)

	assert.Equal(t, "doc.pdf", pipeline.lastFilename)
	assert.Equal(t, 5, pipeline.lastMaxPages)
	assert.Equal(t, []byte("%PDF-1.4"), pipeline.lastContent)
}

func TestSubmitPipelineFailure(t *testing.T) {
	_, repo := openTestRepo(t)
	pipeline := &stubPipeline{err: domain.ConversionError("failed to open PDF", nil)}
	runner := NewRunner(repo, pipeline, testLogger(), WithWorkers(1))
	defer runner.Shutdown(context.Background())

	ticketID, err := runner.Submit(context.Background(), "doc.pdf", []byte("broken"), 5)
	require.NoError(t, err)

	record := waitForTerminal(t, repo, ticketID)
	assert.Equal(t, storage.JobStatusFailed, record.Status)

	var failure jobFailure
	require.NoError(t, json.Unmarshal(record.Result, &failure))
	assert.Contains(t, failure.Error, "failed to open PDF")
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	_, repo := openTestRepo(t)
	pipeline := &stubPipeline{panicMessage: "page buffer overrun"}
	runner := NewRunner(repo, pipeline, testLogger(), WithWorkers(1))
	defer runner.Shutdown(context.Background())

	ticketID, err := runner.Submit(context.Background(), "doc.pdf", []byte("%PDF"), 3)
	require.NoError(t, err)

	record := waitForTerminal(t, repo, ticketID)
	assert.Equal(t, storage.JobStatusFailed, record.Status)

	var failure jobFailure
	require.NoError(t, json.Unmarshal(record.Result, &failure))
	assert.Contains(t, failure.Error, "internal error")
	assert.Contains(t, failure.Error, "page buffer overrun")
}

func TestExecuteMissingPayload(t *testing.T) {
	_, repo := openTestRepo(t)
	pipeline := &stubPipeline{result: successResult()}
	runner := NewRunner(repo, pipeline, testLogger(), WithWorkers(1))
	defer runner.Shutdown(context.Background())

	require.NoError(t, repo.Create(context.Background(), &storage.JobRecord{ID: "no-payload"}))
	runner.execute(context.Background(), Job{TicketID: "no-payload"})

	record, err := repo.GetByID(context.Background(), "no-payload")
	require.NoError(t, err)
	assert.Equal(t, storage.JobStatusFailed, record.Status)

	var failure jobFailure
	require.NoError(t, json.Unmarshal(record.Result, &failure))
	assert.Equal(t, "No payload found", failure.Error)
	assert.Zero(t, pipeline.callCount(), "pipeline must not run without a payload")
}

func TestExecuteMalformedPayload(t *testing.T) {
	_, repo := openTestRepo(t)
	pipeline := &stubPipeline{result: successResult()}
	runner := NewRunner(repo, pipeline, testLogger(), WithWorkers(1))
	defer runner.Shutdown(context.Background())

	payload, err := storage.EncodeJobPayload(&storage.JobPayload{Filename: "doc.pdf"})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &storage.JobRecord{ID: "no-content", Payload: payload}))

	runner.execute(context.Background(), Job{TicketID: "no-content"})

	record, err := repo.GetByID(context.Background(), "no-content")
	require.NoError(t, err)
	assert.Equal(t, storage.JobStatusFailed, record.Status)

	var failure jobFailure
	require.NoError(t, json.Unmarshal(record.Result, &failure))
	assert.Equal(t, "Missing filename or pdf_content in payload", failure.Error)
	assert.Zero(t, pipeline.callCount())
}

func TestExecuteSkipsTerminalTicket(t *testing.T) {
	_, repo := openTestRepo(t)
	pipeline := &stubPipeline{result: successResult()}
	runner := NewRunner(repo, pipeline, testLogger(), WithWorkers(1))
	defer runner.Shutdown(context.Background())

	payload, err := storage.EncodeJobPayload(&storage.JobPayload{Filename: "doc.pdf", PDFContent: "25504446", MaxPages: 5})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &storage.JobRecord{
		ID: "done", Status: storage.JobStatusCompleted, Payload: payload,
	}))

	runner.execute(context.Background(), Job{TicketID: "done"})

	record, err := repo.GetByID(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, storage.JobStatusCompleted, record.Status)
	assert.Zero(t, pipeline.callCount(), "terminal tickets must not re-run")
}

func TestSubmitAfterShutdown(t *testing.T) {
	_, repo := openTestRepo(t)
	runner := NewRunner(repo, &stubPipeline{result: successResult()}, testLogger(), WithWorkers(1))
	runner.Shutdown(context.Background())

	_, err := runner.Submit(context.Background(), "doc.pdf", []byte("%PDF"), 5)
	assert.True(t, errors.Is(err, ErrQueueClosed))
}

func TestDeleteTicket(t *testing.T) {
	_, repo := openTestRepo(t)
	runner := NewRunner(repo, &stubPipeline{result: successResult()}, testLogger(), WithWorkers(1))
	defer runner.Shutdown(context.Background())

	require.NoError(t, repo.Create(context.Background(), &storage.JobRecord{ID: "gone"}))

	existed, err := runner.Delete(context.Background(), "gone")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = runner.Delete(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestStatusNotFound(t *testing.T) {
	_, repo := openTestRepo(t)
	runner := NewRunner(repo, &stubPipeline{}, testLogger(), WithWorkers(1))
	defer runner.Shutdown(context.Background())

	_, err := runner.Status(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
