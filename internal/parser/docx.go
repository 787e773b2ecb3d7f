package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"bookgloss/internal/book"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx books. Heading 1/2 styles start chapters,
// everything else becomes paragraph blocks.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string, assets map[string][]byte) (*book.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to a temp file.
	tmp, err := os.CreateTemp("", "bookgloss-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	wordDoc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	doc := &book.Document{Title: titleFromFilename(filename)}
	var current *book.Chapter

	for _, item := range wordDoc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}

		if level := docxHeadingLevel(para); level > 0 && level <= 2 {
			current = &book.Chapter{Title: text}
			doc.Chapters = append(doc.Chapters, current)
			continue
		}

		if current == nil {
			current = &book.Chapter{Title: introChapterTitle}
			doc.Chapters = append(doc.Chapters, current)
		}
		current.Blocks = append(current.Blocks, &book.Block{Kind: book.BlockText, Text: text})
	}

	return finalize(doc)
}

// docxHeadingLevel returns the heading level of a paragraph style, or 0.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(para.Properties.Style.Val)
	switch {
	case strings.HasSuffix(style, "heading1") || style == "heading 1" || style == "title":
		return 1
	case strings.HasSuffix(style, "heading2") || style == "heading 2":
		return 2
	case strings.HasPrefix(style, "heading"):
		return 3
	}
	return 0
}

// docxParagraphText concatenates the run text of a paragraph.
func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
