// Package attachment extracts plain text from ticket attachments so
// the notes gather stage can include them in the generation context.
package attachment

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const maxExtractedChars = 20000

// ExtractText returns the plain text of a supported attachment file.
// Unsupported extensions yield an empty string with no error; the
// gather stage only cares about text it can use.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	default:
		return "", nil
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var sb strings.Builder
	buf := make([]byte, 4096)
	for sb.Len() < maxExtractedChars {
		n, readErr := r.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if readErr != nil {
			break
		}
	}

	text := sb.String()
	if len(text) > maxExtractedChars {
		text = text[:maxExtractedChars]
	}
	return strings.TrimSpace(text), nil
}
