package extract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexatlas/toc-extractor/internal/domain"
)

func TestWriteResultWithRawContent(t *testing.T) {
	result := domain.NewExtractionResult()
	result.TOCEntries = append(result.TOCEntries, domain.TOCEntry{RawText: "line one"})
	result.RawContent = "0001/2023 .......... Página 3"

	outputPath := filepath.Join(t.TempDir(), "toc.txt")
	location, err := WriteResult(result, outputPath)
	if err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	if location != outputPath {
		t.Errorf("expected location %q, got %q", outputPath, location)
	}

	// Primary file carries the raw text fenced for monospace display.
	text, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(text), "```\n") || !strings.HasSuffix(string(text), "\n```") {
		t.Errorf("expected fenced raw content, got %q", text)
	}
	if !strings.Contains(string(text), result.RawContent) {
		t.Error("raw content missing from primary file")
	}

	// Sibling .json carries the full structured result.
	jsonPath := filepath.Join(filepath.Dir(outputPath), "toc.json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("sibling JSON not written: %v", err)
	}
	var decoded domain.ExtractionResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sibling JSON not parseable: %v", err)
	}
	if len(decoded.TOCEntries) != 1 || decoded.TOCEntries[0].RawText != "line one" {
		t.Errorf("structured result not preserved: %+v", decoded)
	}
}

func TestWriteResultStructuredOnly(t *testing.T) {
	result := domain.NewExtractionResult()
	result.SectionHeaders = append(result.SectionHeaders, "Juzgado de lo Social Número 4")

	outputPath := filepath.Join(t.TempDir(), "toc.txt")
	if _, err := WriteResult(result, outputPath); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}

	var decoded domain.ExtractionResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("expected indented JSON in primary file: %v", err)
	}
	if len(decoded.SectionHeaders) != 1 {
		t.Errorf("structured result not preserved: %+v", decoded)
	}

	// No sibling file in this mode.
	if _, err := os.Stat(filepath.Join(filepath.Dir(outputPath), "toc.json")); !os.IsNotExist(err) {
		t.Error("unexpected sibling JSON file")
	}
}

func TestWriteResultCreatesDirectories(t *testing.T) {
	result := domain.NewExtractionResult()

	outputPath := filepath.Join(t.TempDir(), "nested", "deeper", "toc.txt")
	if _, err := WriteResult(result, outputPath); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("output not written under created directories: %v", err)
	}
}

func TestDefaultSinkPath(t *testing.T) {
	got := DefaultSinkPath("toc")
	want := filepath.Join("toc", "table_of_contents.txt")
	if got != want {
		t.Errorf("DefaultSinkPath = %q, want %q", got, want)
	}
}
