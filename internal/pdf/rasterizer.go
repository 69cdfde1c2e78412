// Package pdf renders the leading pages of a PDF document to PNG
// images using go-fitz (MuPDF).
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/observability"
)

// renderDPI is the effective resolution for page rendering. PDF user
// space is 72 DPI, so the fixed 2x upscale lands at 144.
const renderDPI = 72 * domain.RenderScale

// Rasterizer converts the leading pages of a PDF into PNG page images
// under bounded parallelism.
type Rasterizer struct {
	workers int
	logger  *observability.Logger
}

// NewRasterizer creates a rasterizer with the given worker count.
// Counts below 1 fall back to a single worker.
func NewRasterizer(workers int, logger *observability.Logger) *Rasterizer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Rasterizer{
		workers: workers,
		logger:  logger.WithOperation("rasterize"),
	}
}

// RasterizePages renders up to maxPages leading pages of the document
// at pdfPath. The returned slice is ordered by ascending page index
// regardless of worker completion order. Pages that fail to render are
// logged and dropped, so the result may be shorter than requested and
// may have gaps relative to source page numbers. Only a document that
// cannot be opened at all fails the whole call.
func (r *Rasterizer) RasterizePages(ctx context.Context, pdfPath string, maxPages int) ([]domain.PageImage, error) {
	if err := ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}
	if maxPages < 1 {
		return nil, domain.ValidationError(fmt.Sprintf("max pages must be at least 1, got %d", maxPages), nil)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ConversionError("failed to open PDF", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	pageCount := maxPages
	if total < pageCount {
		pageCount = total
	}
	if pageCount == 0 {
		return []domain.PageImage{}, nil
	}

	// Slots are pre-sized and addressed by page index so output order
	// never depends on completion order. Failed pages leave nil slots.
	slots := make([]*domain.PageImage, pageCount)

	workers := r.workers
	if workers > pageCount {
		workers = pageCount
	}

	// go-fitz documents are not safe for concurrent page access, so
	// rendering is serialized; PNG encoding runs in the workers.
	var docMu sync.Mutex

	indexes := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				slot, err := r.renderPage(doc, &docMu, idx)
				if err != nil {
					r.logger.Warn().Int("page", idx).Err(err).Msg("dropping page that failed to render")
					continue
				}
				slots[idx] = slot
			}
		}()
	}

	for idx := 0; idx < pageCount; idx++ {
		select {
		case <-ctx.Done():
			close(indexes)
			wg.Wait()
			return nil, ctx.Err()
		case indexes <- idx:
		}
	}
	close(indexes)
	wg.Wait()

	images := make([]domain.PageImage, 0, pageCount)
	for _, slot := range slots {
		if slot != nil {
			images = append(images, *slot)
		}
	}

	if dropped := pageCount - len(images); dropped > 0 {
		r.logger.Warn().Int("dropped", dropped).Int("rendered", len(images)).Msg("some pages failed to render")
	}

	return images, nil
}

// renderPage renders one page and encodes it as PNG. Document access
// is guarded; encoding is not.
func (r *Rasterizer) renderPage(doc *fitz.Document, docMu *sync.Mutex, idx int) (*domain.PageImage, error) {
	docMu.Lock()
	img, err := doc.ImageDPI(idx, renderDPI)
	docMu.Unlock()
	if err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("failed to render page %d", idx), err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, domain.ConversionError(fmt.Sprintf("failed to encode page %d as PNG", idx), err)
	}

	return &domain.PageImage{
		Index: idx,
		PNG:   buf.Bytes(),
		Scale: domain.RenderScale,
	}, nil
}
