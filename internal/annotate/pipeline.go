package annotate

import (
	"context"
	"fmt"
	"log/slog"

	"bookgloss/internal/book"
	"bookgloss/internal/llm"
	"golang.org/x/sync/errgroup"
)

// Reporter observes per-block annotation progress. Advance is called
// once per completed paragraph block, so progress is visible without
// inspecting pipeline internals.
type Reporter interface {
	Advance(n int)
}

type nopReporter struct{}

func (nopReporter) Advance(int) {}

// Config controls a pipeline run.
type Config struct {
	// ChapterConcurrency bounds how many chapters annotate in parallel.
	// Paragraphs within a chapter are always strictly sequential.
	ChapterConcurrency int
	Session            SessionConfig
}

// Pipeline annotates every paragraph of a document, one session per
// chapter. Image blocks pass through untouched.
type Pipeline struct {
	client     llm.Client
	readerName string
	cfg        Config
	log        *slog.Logger
}

func NewPipeline(client llm.Client, readerName string, cfg Config, log *slog.Logger) *Pipeline {
	if cfg.ChapterConcurrency <= 0 {
		cfg.ChapterConcurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		client:     client,
		readerName: readerName,
		cfg:        cfg,
		log:        log,
	}
}

// Run annotates the document in place. Chapters run with bounded
// concurrency; the run stops at the first chapter failure, and
// explanations produced before the failure stay on the document for
// diagnostics. Cancellation is cooperative, checked between blocks.
func (p *Pipeline) Run(ctx context.Context, doc *book.Document, rep Reporter) error {
	if rep == nil {
		rep = nopReporter{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ChapterConcurrency)

	for i, ch := range doc.Chapters {
		g.Go(func() error {
			if err := p.runChapter(gctx, ch, rep); err != nil {
				return fmt.Errorf("chapter %d (%q): %w", i+1, ch.Title, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// runChapter annotates one chapter's paragraphs in order with a fresh
// session. Already-annotated blocks are skipped, so re-running a
// partially annotated document never duplicates explanations.
func (p *Pipeline) runChapter(ctx context.Context, ch *book.Chapter, rep Reporter) error {
	sess := NewSession(p.client, p.readerName, ch.Title, p.cfg.Session)

	for _, b := range ch.Blocks {
		if b.Kind != book.BlockText {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if b.Annotated() {
			rep.Advance(1)
			continue
		}

		exp, err := sess.Annotate(ctx, b.Text)
		if err != nil {
			return err
		}
		b.Explanation = exp
		rep.Advance(1)
	}

	p.log.Debug("chapter annotated", "chapter", ch.Title, "paragraphs", ch.Paragraphs())
	return nil
}
