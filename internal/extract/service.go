// Package extract orchestrates the TOC extraction pipeline: stage the
// document locally, rasterize leading pages, send them to the model gateway,
// and optionally persist the result.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lexatlas/toc-extractor/internal/cache"
	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/observability"
)

// Rasterizer renders the leading pages of a local PDF.
type Rasterizer interface {
	RasterizePages(ctx context.Context, pdfPath string, maxPages int) ([]domain.PageImage, error)
}

// Gateway turns rendered pages into a structured extraction result.
type Gateway interface {
	ExtractTOC(ctx context.Context, pages []domain.PageImage) (*domain.ExtractionResult, error)
}

// Service orchestrates the extraction pipeline.
type Service struct {
	rasterizer Rasterizer
	gateway    Gateway
	fetcher    *Fetcher
	cache      cache.Client
	cacheTTL   time.Duration
	logger     *observability.Logger
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithCache enables result caching for byte-identical uploads. client may be
// nil, which leaves caching off.
func WithCache(client cache.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = client
		s.cacheTTL = ttl
	}
}

// WithFetcher swaps the URL fetcher, mainly for tests.
func WithFetcher(f *Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// NewService creates an extraction service.
func NewService(rasterizer Rasterizer, gateway Gateway, logger *observability.Logger, opts ...Option) *Service {
	s := &Service{
		rasterizer: rasterizer,
		gateway:    gateway,
		fetcher:    NewFetcher(logger),
		logger:     logger.WithOperation("extract"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractFromBytes stages uploaded bytes to a transient file and runs the
// pipeline against it. The transient file is removed on every exit path.
// outputPath of "" means no sink; the returned location is then empty.
func (s *Service) ExtractFromBytes(ctx context.Context, filename string, content []byte, maxPages int, outputPath string) (*domain.ExtractionResult, string, error) {
	if len(content) == 0 {
		return nil, "", domain.ValidationError("empty PDF content", nil)
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = resultCacheKey(content, maxPages)
		if cached := s.cacheLookup(ctx, cacheKey); cached != nil {
			s.logger.Info().Str("filename", filename).Msg("serving extraction from cache")
			location := ""
			if outputPath != "" {
				var err error
				if location, err = WriteResult(cached, outputPath); err != nil {
					return nil, "", err
				}
			}
			return cached, location, nil
		}
	}

	tmpPath, err := stageTransientPDF(content)
	if err != nil {
		return nil, "", err
	}
	defer s.removeTransient(tmpPath)

	s.logger.Info().
		Str("filename", filename).
		Int("bytes", len(content)).
		Msg("staged uploaded PDF")

	result, location, err := s.ExtractFromPath(ctx, tmpPath, maxPages, outputPath)
	if err != nil {
		return nil, "", err
	}

	if s.cache != nil && !result.Error {
		s.cacheStore(ctx, cacheKey, result)
	}
	return result, location, nil
}

// ExtractFromURL downloads a remote PDF to a transient file and runs the
// pipeline against it. The transient file is removed on every exit path.
func (s *Service) ExtractFromURL(ctx context.Context, pdfURL string, maxPages int, outputPath string) (*domain.ExtractionResult, string, error) {
	tmpPath, err := s.fetcher.FetchToFile(ctx, pdfURL)
	if err != nil {
		return nil, "", err
	}
	defer s.removeTransient(tmpPath)

	return s.ExtractFromPath(ctx, tmpPath, maxPages, outputPath)
}

// ExtractFromPath runs the pipeline against a PDF already on local disk:
// rasterize, extract, optionally persist. The file at pdfPath is left in
// place.
func (s *Service) ExtractFromPath(ctx context.Context, pdfPath string, maxPages int, outputPath string) (*domain.ExtractionResult, string, error) {
	start := time.Now()

	pages, err := s.rasterizer.RasterizePages(ctx, pdfPath, maxPages)
	if err != nil {
		return nil, "", err
	}

	result, err := s.gateway.ExtractTOC(ctx, pages)
	if err != nil {
		// Rendering worked by this point. A configuration failure in the
		// gateway is the operator's problem, not the client's, so say so.
		var de *domain.DomainError
		if errors.As(err, &de) && de.Type == domain.ErrorTypeConfig {
			return nil, "", domain.ConfigError(
				fmt.Sprintf("PDF processed successfully, but extraction configuration is incomplete: %s", de.Message), err)
		}
		return nil, "", err
	}

	location := ""
	if outputPath != "" {
		if location, err = WriteResult(result, outputPath); err != nil {
			return nil, "", err
		}
	}

	s.logger.Info().
		Str("pdf", filepath.Base(pdfPath)).
		Int("pages", len(pages)).
		Int("toc_entries", len(result.TOCEntries)).
		Int("section_headers", len(result.SectionHeaders)).
		Bool("error", result.Error).
		Dur("duration", time.Since(start)).
		Msg("extraction pipeline finished")

	return result, location, nil
}

// stageTransientPDF writes content to a unique transient file and returns its
// path. The caller owns removal.
func stageTransientPDF(content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "toc-upload-*.pdf")
	if err != nil {
		return "", domain.IOError("failed to create transient file", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", domain.IOError("failed to stage PDF content", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", domain.IOError("failed to stage PDF content", err)
	}
	return tmp.Name(), nil
}

func (s *Service) removeTransient(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to remove transient file")
	}
}

func resultCacheKey(content []byte, maxPages int) string {
	sum := sha256.Sum256(content)
	return cache.CacheKey("extract", hex.EncodeToString(sum[:]), strconv.Itoa(maxPages))
}

func (s *Service) cacheLookup(ctx context.Context, key string) *domain.ExtractionResult {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("cache lookup failed")
		}
		return nil
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.Warn().Err(err).Msg("discarding undecodable cache entry")
		return nil
	}
	return &result
}

func (s *Service) cacheStore(ctx context.Context, key string, result *domain.ExtractionResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("cache store failed")
	}
}
