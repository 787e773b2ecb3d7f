package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"bookgloss/internal/book"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF books. PDF text extraction has no reliable
// heading structure, so each page becomes one chapter of paragraph
// blocks.
type PDFParser struct{}

func (p *PDFParser) Parse(r io.Reader, filename string, assets map[string][]byte) (*book.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so write to a temp file.
	tmp, err := os.CreateTemp("", "bookgloss-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	doc := &book.Document{Title: titleFromFilename(filename)}

	for i, page := range strings.Split(text, "\f") {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		ch := &book.Chapter{Title: fmt.Sprintf("Page %d", i+1)}
		for _, para := range strings.Split(page, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			ch.Blocks = append(ch.Blocks, &book.Block{Kind: book.BlockText, Text: para})
		}
		if len(ch.Blocks) > 0 {
			doc.Chapters = append(doc.Chapters, ch)
		}
	}

	return finalize(doc)
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}
