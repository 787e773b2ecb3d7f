package parser

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"bookgloss/internal/book"
)

// TextParser handles the plain-text book convention:
//
//	{-Chapter Title-}       starts a new chapter
//	[IMAGE: ref]            image block (asset name or absolute URL)
//	[IMAGE: ref | caption]  image block with caption
//
// Paragraphs are separated by blank lines. Content before the first
// chapter marker goes into an implicit "Introduction" chapter.
type TextParser struct{}

const introChapterTitle = "Introduction"

var (
	chapterMarkerRe = regexp.MustCompile(`^\{-\s*(.*?)\s*-\}$`)
	imageMarkerRe   = regexp.MustCompile(`(?i)^\[IMAGE:\s*([^|\]]*?)\s*(?:\|\s*([^\]]*?)\s*)?\]$`)
)

func (p *TextParser) Parse(r io.Reader, filename string, assets map[string][]byte) (*book.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	doc := &book.Document{Title: titleFromFilename(filename)}
	var current *book.Chapter
	markerSeen := false

	var para strings.Builder

	// chapterFor lazily creates the implicit Introduction chapter for
	// content that precedes the first marker.
	chapterFor := func() *book.Chapter {
		if current == nil {
			current = &book.Chapter{Title: introChapterTitle}
			doc.Chapters = append(doc.Chapters, current)
		}
		return current
	}

	flushPara := func() {
		if para.Len() == 0 {
			return
		}
		ch := chapterFor()
		ch.Blocks = append(ch.Blocks, &book.Block{
			Kind: book.BlockText,
			Text: para.String(),
		})
		para.Reset()
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flushPara()
			continue
		}

		if m := chapterMarkerRe.FindStringSubmatch(trimmed); m != nil {
			flushPara()
			title := m[1]
			if title == "" {
				return nil, &MalformedInputError{Line: lineNo, Reason: "chapter marker with empty title"}
			}
			markerSeen = true
			current = &book.Chapter{Title: title}
			doc.Chapters = append(doc.Chapters, current)
			continue
		}

		if m := imageMarkerRe.FindStringSubmatch(trimmed); m != nil {
			flushPara()
			ref := m[1]
			if err := checkAssetRef(ref, assets, lineNo); err != nil {
				return nil, err
			}
			ch := chapterFor()
			ch.Blocks = append(ch.Blocks, &book.Block{
				Kind:    book.BlockImage,
				Ref:     ref,
				Caption: m[2],
			})
			continue
		}

		if para.Len() > 0 {
			para.WriteString("\n")
		}
		para.WriteString(trimmed)
	}
	flushPara()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !markerSeen {
		return nil, &MalformedInputError{Reason: "no chapter markers found (expected {-Chapter Title-})"}
	}

	return finalize(doc)
}
