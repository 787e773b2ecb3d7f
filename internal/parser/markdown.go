package parser

import (
	"bytes"
	"io"
	"strings"

	"bookgloss/internal/book"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown books using goldmark. Level 1 and 2
// headings start chapters; deeper headings stay inline as paragraphs.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string, assets map[string][]byte) (*book.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	root := md.Parser().Parse(reader)

	doc := &book.Document{Title: titleFromFilename(filename)}
	var current *book.Chapter

	chapterFor := func() *book.Chapter {
		if current == nil {
			current = &book.Chapter{Title: introChapterTitle}
			doc.Chapters = append(doc.Chapters, current)
		}
		return current
	}

	appendText := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		ch := chapterFor()
		ch.Blocks = append(ch.Blocks, &book.Block{Kind: book.BlockText, Text: t})
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := string(node.Text(src))
			if node.Level <= 2 {
				if title == "" {
					return nil, &MalformedInputError{Reason: "heading with empty title"}
				}
				current = &book.Chapter{Title: title}
				doc.Chapters = append(doc.Chapters, current)
			} else {
				appendText(title)
			}
		case *ast.Paragraph:
			// A paragraph that is a single image becomes an image block.
			if img := soleImage(node); img != nil {
				ref := string(img.Destination)
				if err := checkAssetRef(ref, assets, 0); err != nil {
					return nil, err
				}
				ch := chapterFor()
				ch.Blocks = append(ch.Blocks, &book.Block{
					Kind:    book.BlockImage,
					Ref:     ref,
					Caption: string(img.Text(src)),
				})
				continue
			}
			appendText(extractMarkdownText(n, src))
		default:
			appendText(extractMarkdownText(n, src))
		}
	}

	return finalize(doc)
}

// soleImage returns the image node if the paragraph contains exactly one
// image and no other content.
func soleImage(p *ast.Paragraph) *ast.Image {
	child := p.FirstChild()
	if child == nil || child.NextSibling() != nil {
		return nil
	}
	img, ok := child.(*ast.Image)
	if !ok {
		return nil
	}
	return img
}

// extractMarkdownText gets the text content of a goldmark AST node.
func extractMarkdownText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines.Len() > 0 {
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				buf.Write(line.Value(src))
			}
			return strings.TrimSpace(buf.String())
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractMarkdownText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
