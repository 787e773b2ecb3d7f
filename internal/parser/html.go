package parser

import (
	"fmt"
	"io"
	"strings"

	"bookgloss/internal/book"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML books. h1/h2 tags start chapters; p, li and
// blockquote become paragraphs; img tags become image blocks.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string, assets map[string][]byte) (*book.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &book.Document{Title: titleFromFilename(filename)}
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	var current *book.Chapter
	chapterFor := func() *book.Chapter {
		if current == nil {
			current = &book.Chapter{Title: introChapterTitle}
			doc.Chapters = append(doc.Chapters, current)
		}
		return current
	}

	var walkErr error
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if walkErr != nil {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case headingLevel(n.Data) > 0:
				title := textContent(n)
				if headingLevel(n.Data) <= 2 && title != "" {
					current = &book.Chapter{Title: title}
					doc.Chapters = append(doc.Chapters, current)
				} else if title != "" {
					ch := chapterFor()
					ch.Blocks = append(ch.Blocks, &book.Block{Kind: book.BlockText, Text: title})
				}
				return
			case n.Data == "img":
				ref := attr(n, "src")
				if err := checkAssetRef(ref, assets, 0); err != nil {
					walkErr = err
					return
				}
				ch := chapterFor()
				ch.Blocks = append(ch.Blocks, &book.Block{
					Kind:    book.BlockImage,
					Ref:     ref,
					Caption: attr(n, "alt"),
				})
				return
			case n.Data == "script" || n.Data == "style" || n.Data == "nav" ||
				n.Data == "footer" || n.Data == "header":
				return
			case n.Data == "p" || n.Data == "li" || n.Data == "blockquote":
				// Paragraph-level elements may still contain images.
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && c.Data == "img" {
						walk(c)
					}
				}
				if t := textContent(n); t != "" {
					ch := chapterFor()
					ch.Blocks = append(ch.Blocks, &book.Block{Kind: book.BlockText, Text: t})
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}
	if walkErr != nil {
		return nil, walkErr
	}

	return finalize(doc)
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
