package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"bookgloss/internal/book"
)

// RenderError reports an internal invariant violation while building
// the artifact, such as an image block whose asset bytes are missing.
// It is a defect, never retried.
type RenderError struct {
	Reason string
}

func (e *RenderError) Error() string {
	return "render failed: " + e.Reason
}

// Artifact is the finished, downloadable book: a zip holding the main
// HTML page, one explanation page per annotated paragraph, and any
// uploaded image assets.
type Artifact struct {
	Filename string
	Data     []byte
}

// Builder renders an annotated document into an offline HTML artifact.
// Output is deterministic: the same document always produces
// byte-identical zip bytes.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

const explanationDir = "book_requirements"

// Build renders the document. Every annotated paragraph gets a numbered
// explanation page linked from the main page; image blocks referencing
// uploaded assets must have their bytes present.
func (b *Builder) Build(doc *book.Document, assets map[string][]byte) (*Artifact, error) {
	slug := Slugify(doc.Title)
	if slug == "" {
		slug = "book"
	}

	// Explanation pages are numbered in reading order.
	pages := map[*book.Block]int{}
	n := 0
	for _, ch := range doc.Chapters {
		for _, blk := range ch.Blocks {
			if blk.Kind == book.BlockText && blk.Annotated() {
				n++
				pages[blk] = n
			}
		}
	}

	// Local image assets, in first-reference order.
	var assetNames []string
	seen := map[string]bool{}
	for _, ch := range doc.Chapters {
		for _, blk := range ch.Blocks {
			if blk.Kind != book.BlockImage || book.IsRemoteRef(blk.Ref) {
				continue
			}
			if _, ok := assets[blk.Ref]; !ok {
				return nil, &RenderError{Reason: fmt.Sprintf("image %q has no uploaded asset", blk.Ref)}
			}
			if !seen[blk.Ref] {
				seen[blk.Ref] = true
				assetNames = append(assetNames, blk.Ref)
			}
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := addFile(zw, slug+".html", []byte(b.renderMain(doc, pages))); err != nil {
		return nil, err
	}
	for _, ch := range doc.Chapters {
		for _, blk := range ch.Blocks {
			num, ok := pages[blk]
			if !ok {
				continue
			}
			name := fmt.Sprintf("%s/exp_%d.html", explanationDir, num)
			page := b.renderExplanation(doc.Title, slug, blk, num)
			if err := addFile(zw, name, []byte(page)); err != nil {
				return nil, err
			}
		}
	}
	for _, name := range assetNames {
		if err := addFile(zw, "assets/"+name, assets[name]); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &RenderError{Reason: fmt.Sprintf("close zip: %s", err)}
	}
	return &Artifact{Filename: slug + ".zip", Data: buf.Bytes()}, nil
}

// addFile writes one zip entry. Timestamps stay zero so identical
// documents produce identical archives.
func addFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return &RenderError{Reason: fmt.Sprintf("create %s: %s", name, err)}
	}
	if _, err := w.Write(data); err != nil {
		return &RenderError{Reason: fmt.Sprintf("write %s: %s", name, err)}
	}
	return nil
}

func (b *Builder) renderMain(doc *book.Document, pages map[*book.Block]int) string {
	var sb strings.Builder
	title := html.EscapeString(doc.Title)

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>" + title + "</title>\n")
	sb.WriteString("<style>\n" + bookStyle + "</style>\n")
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString("<h1>" + title + "</h1>\n")

	sb.WriteString("<nav class=\"toc\">\n<h2>Contents</h2>\n<ol>\n")
	for i, ch := range doc.Chapters {
		sb.WriteString(fmt.Sprintf("<li><a href=\"#ch-%d\">%s</a></li>\n",
			i+1, html.EscapeString(ch.Title)))
	}
	sb.WriteString("</ol>\n</nav>\n")

	for i, ch := range doc.Chapters {
		sb.WriteString(fmt.Sprintf("<section id=\"ch-%d\">\n<h2>%s</h2>\n",
			i+1, html.EscapeString(ch.Title)))
		for _, blk := range ch.Blocks {
			switch blk.Kind {
			case book.BlockText:
				b.writeParagraph(&sb, blk, pages[blk])
			case book.BlockImage:
				b.writeImage(&sb, blk)
			}
		}
		sb.WriteString("</section>\n")
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

func (b *Builder) writeParagraph(sb *strings.Builder, blk *book.Block, page int) {
	if page > 0 {
		sb.WriteString(fmt.Sprintf("<p id=\"p-%d\">%s <a class=\"explain\" href=\"%s/exp_%d.html\">Explain</a></p>\n",
			page, html.EscapeString(blk.Text), explanationDir, page))
		return
	}
	sb.WriteString("<p>" + html.EscapeString(blk.Text) + "</p>\n")
}

func (b *Builder) writeImage(sb *strings.Builder, blk *book.Block) {
	src := blk.Ref
	if !book.IsRemoteRef(src) {
		src = "assets/" + src
	}
	caption := html.EscapeString(blk.Caption)
	sb.WriteString("<figure><img src=\"" + html.EscapeString(src) + "\" alt=\"" + caption + "\">")
	if blk.Caption != "" {
		sb.WriteString("<figcaption>" + caption + "</figcaption>")
	}
	sb.WriteString("</figure>\n")
}

func (b *Builder) renderExplanation(bookTitle, slug string, blk *book.Block, num int) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString(fmt.Sprintf("<title>Explanation %d - %s</title>\n", num, html.EscapeString(bookTitle)))
	sb.WriteString("<style>\n" + bookStyle + "</style>\n")
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(fmt.Sprintf("<h1>Explanation %d</h1>\n", num))
	sb.WriteString("<blockquote>" + html.EscapeString(blk.Text) + "</blockquote>\n")
	sb.WriteString("<div class=\"explanation\">" + textToHTML(blk.Explanation.Text) + "</div>\n")
	sb.WriteString(fmt.Sprintf("<p><a href=\"../%s.html#p-%d\">Back to the book</a></p>\n", slug, num))
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// textToHTML escapes model output and keeps its paragraph breaks.
func textToHTML(text string) string {
	parts := strings.Split(strings.TrimSpace(text), "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		escaped := html.EscapeString(p)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		out = append(out, "<p>"+escaped+"</p>")
	}
	return strings.Join(out, "\n")
}

const bookStyle = `body {
  background: #1a1a2e;
  color: #e8e8e8;
  font-family: Georgia, serif;
  line-height: 1.7;
  max-width: 46rem;
  margin: 0 auto;
  padding: 2rem 1rem;
}
h1, h2 { color: #f0c674; }
a { color: #81a2be; }
a.explain {
  font-size: 0.8em;
  border: 1px solid #81a2be;
  border-radius: 4px;
  padding: 0 0.4em;
  text-decoration: none;
}
nav.toc {
  background: #16213e;
  border-radius: 8px;
  padding: 1rem 2rem;
  margin-bottom: 2rem;
}
blockquote {
  border-left: 3px solid #f0c674;
  margin-left: 0;
  padding-left: 1rem;
  color: #bdbdbd;
}
figure { text-align: center; }
figure img { max-width: 100%; }
figcaption { color: #9e9e9e; font-size: 0.9em; }
`
