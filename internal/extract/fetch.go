package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/observability"
)

const (
	fetchTimeout  = 30 * time.Second
	downloadChunk = 64 * 1024
)

// Some document hosts reject generic HTTP clients, so downloads present a
// browser-like request signature.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "application/pdf,application/octet-stream,*/*",
	"Accept-Language": "en-US,en;q=0.9,es;q=0.8",
}

// Fetcher downloads remote PDFs to transient local files.
type Fetcher struct {
	client *http.Client
	logger *observability.Logger
}

func NewFetcher(logger *observability.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger.WithOperation("fetch"),
	}
}

// FetchToFile downloads url into a unique transient PDF file and returns its
// path. The caller owns removal of the returned file. Network failures and
// non-2xx responses are wrapped into descriptive errors rather than
// propagated raw.
func (f *Fetcher) FetchToFile(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", domain.ValidationError(fmt.Sprintf("invalid PDF URL: %s", url), err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to download PDF from %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.IOError(fmt.Sprintf("failed to download PDF from %s: HTTP %d", url, resp.StatusCode), nil)
	}

	tmp, err := os.CreateTemp("", "toc-download-*.pdf")
	if err != nil {
		return "", domain.IOError("failed to create transient file", err)
	}

	// Stream in chunks to bound memory on large documents.
	written, err := io.CopyBuffer(tmp, resp.Body, make([]byte, downloadChunk))
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", domain.IOError(fmt.Sprintf("failed to stream PDF from %s", url), err)
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return "", domain.IOError("failed to finalize PDF download", closeErr)
	}

	f.logger.Info().
		Str("url", url).
		Int64("bytes", written).
		Msg("downloaded PDF")

	return tmp.Name(), nil
}
