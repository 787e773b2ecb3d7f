package parser

import (
	"strings"
	"testing"

	"bookgloss/internal/book"
)

func TestMarkdownParser_HeadingsBecomeChapters(t *testing.T) {
	input := `# The Beginning

Intro text.

More intro.

## The Middle

Middle content.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "doc" {
		t.Errorf("expected title %q, got %q", "doc", doc.Title)
	}
	if len(doc.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(doc.Chapters))
	}
	if doc.Chapters[0].Title != "The Beginning" {
		t.Errorf("expected %q, got %q", "The Beginning", doc.Chapters[0].Title)
	}
	if doc.Chapters[1].Title != "The Middle" {
		t.Errorf("expected %q, got %q", "The Middle", doc.Chapters[1].Title)
	}
	if len(doc.Chapters[0].Blocks) != 2 {
		t.Fatalf("expected 2 blocks in first chapter, got %d", len(doc.Chapters[0].Blocks))
	}
	if doc.Chapters[0].Blocks[0].Text != "Intro text." {
		t.Errorf("expected %q, got %q", "Intro text.", doc.Chapters[0].Blocks[0].Text)
	}
}

func TestMarkdownParser_DeepHeadingsStayInline(t *testing.T) {
	input := "# Ch\n\nText.\n\n### Sub-point\n\nMore text.\n"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Chapters) != 1 {
		t.Fatalf("expected 1 chapter (h3 stays inline), got %d", len(doc.Chapters))
	}
	if len(doc.Chapters[0].Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(doc.Chapters[0].Blocks))
	}
	if doc.Chapters[0].Blocks[1].Text != "Sub-point" {
		t.Errorf("expected inline heading text, got %q", doc.Chapters[0].Blocks[1].Text)
	}
}

func TestMarkdownParser_ImageBecomesImageBlock(t *testing.T) {
	input := "# Ch\n\nBefore.\n\n![A sunset](https://example.com/sunset.jpg)\n\nAfter.\n"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blocks := doc.Chapters[0].Blocks
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if blocks[1].Kind != book.BlockImage {
		t.Fatalf("expected image block, got %+v", blocks[1])
	}
	if blocks[1].Ref != "https://example.com/sunset.jpg" {
		t.Errorf("unexpected ref %q", blocks[1].Ref)
	}
	if blocks[1].Caption != "A sunset" {
		t.Errorf("unexpected caption %q", blocks[1].Caption)
	}
}

func TestMarkdownParser_LocalImageRequiresAsset(t *testing.T) {
	input := "# Ch\n\n![map](map.png)\n"
	p := &MarkdownParser{}
	if _, err := p.Parse(strings.NewReader(input), "doc.md", nil); err == nil {
		t.Fatal("expected error for image without matching asset")
	}

	doc, err := p.Parse(strings.NewReader(input), "doc.md", map[string][]byte{"map.png": []byte("x")})
	if err != nil {
		t.Fatalf("unexpected error with asset present: %v", err)
	}
	if doc.Chapters[0].Blocks[0].Kind != book.BlockImage {
		t.Errorf("expected image block, got %+v", doc.Chapters[0].Blocks[0])
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	// Heading-less markdown lands in the implicit Introduction chapter.
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader("Just a paragraph.\n"), "doc.md", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Chapters) != 1 || doc.Chapters[0].Title != "Introduction" {
		t.Fatalf("expected single Introduction chapter, got %+v", doc.Chapters)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	if _, err := (&MarkdownParser{}).Parse(strings.NewReader(""), "doc.md", nil); err == nil {
		t.Fatal("expected error for empty markdown")
	}
}
