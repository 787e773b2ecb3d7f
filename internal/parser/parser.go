package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"bookgloss/internal/book"
)

// Parser converts raw book bytes into a book.Document. The assets map
// carries image files uploaded alongside the book, keyed by filename;
// parsers that support image blocks validate local refs against it.
type Parser interface {
	Parse(r io.Reader, filename string, assets map[string][]byte) (*book.Document, error)
}

// MalformedInputError reports input that does not follow the recognized
// chapter/paragraph/image conventions. Line is 1-based when known.
type MalformedInputError struct {
	Line   int
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// titleFromFilename derives a document title from the uploaded filename.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// checkAssetRef validates an image ref: remote URLs pass through, local
// refs must name an uploaded asset.
func checkAssetRef(ref string, assets map[string][]byte, line int) error {
	if ref == "" {
		return &MalformedInputError{Line: line, Reason: "image marker with empty reference"}
	}
	if book.IsRemoteRef(ref) {
		return nil
	}
	if _, ok := assets[ref]; !ok {
		return &MalformedInputError{Line: line, Reason: fmt.Sprintf("image reference %q has no matching uploaded asset", ref)}
	}
	return nil
}

// finalize enforces the parse contract shared by all formats: a Document
// has at least one chapter and at least one content block, never an empty
// success.
func finalize(doc *book.Document) (*book.Document, error) {
	if len(doc.Chapters) == 0 {
		return nil, &MalformedInputError{Reason: "no chapters found"}
	}
	blocks := 0
	for _, c := range doc.Chapters {
		blocks += len(c.Blocks)
	}
	if blocks == 0 {
		return nil, &MalformedInputError{Reason: "no content blocks found"}
	}
	return doc, nil
}
