package book

import (
	"strings"
	"time"
)

// BlockKind discriminates the content block variants.
type BlockKind string

const (
	BlockText  BlockKind = "text"
	BlockImage BlockKind = "image"
)

// Document is the root of a parsed book.
type Document struct {
	Title    string     // Book title (from metadata or filename)
	Chapters []*Chapter // In source order, never empty after a successful parse
}

// Chapter is one chapter of a book.
type Chapter struct {
	Title  string
	Blocks []*Block // In source order
}

// Block is the smallest annotatable unit of a chapter: a paragraph of
// text or an image reference.
type Block struct {
	Kind BlockKind

	// Text blocks.
	Text        string
	Explanation *Explanation // Set once by annotation; nil until then

	// Image blocks. Ref is either an absolute http(s) URL or the name of
	// an asset uploaded alongside the book.
	Ref     string
	Caption string
}

// Explanation is the AI-generated companion text for one paragraph.
type Explanation struct {
	Text        string
	GeneratedAt time.Time
}

// Annotated reports whether a text block already carries an explanation.
func (b *Block) Annotated() bool {
	return b.Kind == BlockText && b.Explanation != nil
}

// Paragraphs returns the number of text blocks in the chapter.
func (c *Chapter) Paragraphs() int {
	n := 0
	for _, b := range c.Blocks {
		if b.Kind == BlockText {
			n++
		}
	}
	return n
}

// Paragraphs returns the number of text blocks across all chapters. This
// is the denominator for job progress.
func (d *Document) Paragraphs() int {
	n := 0
	for _, c := range d.Chapters {
		n += c.Paragraphs()
	}
	return n
}

// IsRemoteRef reports whether an image ref points at a remote URL rather
// than an uploaded asset.
func IsRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
