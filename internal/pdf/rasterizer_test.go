package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/observability"
)

// writeTestPDF writes a minimal valid PDF with the given number of
// blank pages and returns its path.
func writeTestPDF(t *testing.T, pages int) string {
	t.Helper()

	var buf bytes.Buffer
	offsets := make([]int, 0, pages+3)

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := 0; i < pages; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", i+3)
	}

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, pages))
	for i := 0; i < pages; i++ {
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>\nendobj\n", i+3))
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart)

	path := filepath.Join(t.TempDir(), "test.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test pdf: %v", err)
	}
	return path
}

func TestRasterizePagesOrderAndCap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rasterization test in short mode")
	}

	path := writeTestPDF(t, 3)
	r := NewRasterizer(2, observability.DefaultLogger())

	tests := []struct {
		name     string
		maxPages int
		want     int
	}{
		{"cap above total", 5, 3},
		{"cap below total", 2, 2},
		{"cap equals total", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images, err := r.RasterizePages(context.Background(), path, tt.maxPages)
			if err != nil {
				t.Fatalf("RasterizePages: %v", err)
			}
			if len(images) != tt.want {
				t.Fatalf("got %d images, want %d", len(images), tt.want)
			}
			for i, img := range images {
				if img.Index != i {
					t.Errorf("image %d has index %d, want ascending order", i, img.Index)
				}
				if img.Scale != domain.RenderScale {
					t.Errorf("image %d has scale %v, want %v", i, img.Scale, domain.RenderScale)
				}
				decoded, err := png.Decode(bytes.NewReader(img.PNG))
				if err != nil {
					t.Fatalf("image %d is not valid PNG: %v", i, err)
				}
				if decoded.Bounds().Dx() == 0 || decoded.Bounds().Dy() == 0 {
					t.Errorf("image %d has empty bounds", i)
				}
			}
		})
	}
}

func TestRasterizePagesSingleWorker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rasterization test in short mode")
	}

	path := writeTestPDF(t, 4)
	r := NewRasterizer(1, observability.DefaultLogger())

	images, err := r.RasterizePages(context.Background(), path, 10)
	if err != nil {
		t.Fatalf("RasterizePages: %v", err)
	}
	if len(images) != 4 {
		t.Fatalf("got %d images, want 4", len(images))
	}
	for i, img := range images {
		if img.Index != i {
			t.Errorf("image %d has index %d", i, img.Index)
		}
	}
}

func TestRasterizePagesMissingFile(t *testing.T) {
	r := NewRasterizer(1, observability.DefaultLogger())

	_, err := r.RasterizePages(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"), 5)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !domain.IsType(err, domain.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRasterizePagesCorruptDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rasterization test in short mode")
	}

	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	r := NewRasterizer(1, observability.DefaultLogger())
	_, err := r.RasterizePages(context.Background(), path, 5)
	if err == nil {
		t.Fatal("expected error for corrupt document")
	}
	if !domain.IsType(err, domain.ErrorTypeConversion) {
		t.Errorf("expected conversion error, got %v", err)
	}
}

func TestRasterizePagesInvalidMaxPages(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rasterization test in short mode")
	}

	path := writeTestPDF(t, 1)
	r := NewRasterizer(1, observability.DefaultLogger())

	_, err := r.RasterizePages(context.Background(), path, 0)
	if err == nil {
		t.Fatal("expected error for zero max pages")
	}
	if !domain.IsType(err, domain.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
