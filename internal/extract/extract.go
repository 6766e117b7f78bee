// Package extract turns raw bytes and web pages into plain text for
// chunking. A source that yields no text is a zero-result case for the
// ingest pipeline, not a failure.
package extract

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat marks file types the extractor does not handle.
// Callers treat it as "zero chunks ingested".
var ErrUnsupportedFormat = errors.New("extract: unsupported file format")

// FromBytes extracts plain text from file content, dispatching on the
// lowercased file extension.
func FromBytes(data []byte, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		// Best-effort decode: invalid byte sequences are dropped, not fatal.
		return strings.ToValidUTF8(string(data), ""), nil
	case ".pdf":
		return fromPDF(data)
	case ".docx":
		return fromDOCX(data)
	default:
		return "", ErrUnsupportedFormat
	}
}
