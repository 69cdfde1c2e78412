package extract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexatlas/toc-extractor/internal/domain"
)

const defaultSinkName = "table_of_contents.txt"

// DefaultSinkPath returns the sink location used when a caller asks for
// persistence without naming a file.
func DefaultSinkPath(outputDir string) string {
	return filepath.Join(outputDir, defaultSinkName)
}

// WriteResult persists an extraction result to outputPath and returns the
// path written.
//
// When the result carries raw model text, the text is written as a fenced
// block so monospace layout survives, and the full structured result goes to
// a sibling .json file. Without raw text the structured result is written
// directly as indented JSON.
func WriteResult(result *domain.ExtractionResult, outputPath string) (string, error) {
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", domain.IOError("failed to create output directory", err)
		}
	}

	structured, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", domain.IOError("failed to encode extraction result", err)
	}

	if result.RawContent != "" {
		jsonPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".json"
		if err := os.WriteFile(jsonPath, structured, 0o644); err != nil {
			return "", domain.IOError("failed to write structured result", err)
		}

		fenced := "```\n" + result.RawContent + "\n```"
		if err := os.WriteFile(outputPath, []byte(fenced), 0o644); err != nil {
			return "", domain.IOError("failed to write TOC output", err)
		}
		return outputPath, nil
	}

	if err := os.WriteFile(outputPath, structured, 0o644); err != nil {
		return "", domain.IOError("failed to write TOC output", err)
	}
	return outputPath, nil
}
