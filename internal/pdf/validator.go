package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexatlas/toc-extractor/internal/domain"
)

// ValidatePDFPath validates that a file path is valid and points to a
// readable PDF.
func ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	if !HasPDFExtension(path) {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", filepath.Ext(path)), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// HasPDFExtension reports whether a filename carries the .pdf
// extension, case-insensitive. Used at the upload boundary where only
// the client-supplied name is available.
func HasPDFExtension(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}
