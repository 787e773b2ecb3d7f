package jobs

import (
	"testing"

	"bookgloss/internal/book"
	"bookgloss/internal/render"
)

func sampleDoc() *book.Document {
	return &book.Document{
		Title: "Sample",
		Chapters: []*book.Chapter{{
			Title: "One",
			Blocks: []*book.Block{
				{Kind: book.BlockText, Text: "a"},
				{Kind: book.BlockText, Text: "b"},
				{Kind: book.BlockImage, Ref: "https://example.com/x.png"},
			},
		}},
	}
}

func TestJob_InitialSnapshot(t *testing.T) {
	job := NewJob("id-1", "Sam", "book.txt", sampleDoc(), nil)
	snap := job.Snapshot()

	if snap.State != StatePending {
		t.Errorf("expected pending, got %q", snap.State)
	}
	if snap.BlocksTotal != 2 {
		t.Errorf("expected 2 text blocks, got %d", snap.BlocksTotal)
	}
	if snap.BlocksDone != 0 {
		t.Errorf("expected zero progress, got %d", snap.BlocksDone)
	}
	if snap.Title != "Sample" {
		t.Errorf("expected document title, got %q", snap.Title)
	}
}

func TestJob_HappyPathTransitions(t *testing.T) {
	job := NewJob("id-1", "Sam", "book.txt", sampleDoc(), nil)

	if !job.Start() {
		t.Fatal("expected pending job to start")
	}
	job.Advance(1)
	job.Advance(1)
	job.Complete(&render.Artifact{Filename: "sample.zip", Data: []byte("zip")})

	snap := job.Snapshot()
	if snap.State != StateCompleted {
		t.Errorf("expected completed, got %q", snap.State)
	}
	if snap.BlocksDone != 2 {
		t.Errorf("expected progress 2, got %d", snap.BlocksDone)
	}
	art, ok := job.Artifact()
	if !ok || art.Filename != "sample.zip" {
		t.Errorf("expected artifact, got %v (ok=%v)", art, ok)
	}
}

func TestJob_TerminalStateIsImmutable(t *testing.T) {
	job := NewJob("id-1", "Sam", "book.txt", sampleDoc(), nil)
	job.Start()
	job.Fail("ai service: down")

	job.Complete(&render.Artifact{Filename: "late.zip"})
	job.Fail("second reason")

	snap := job.Snapshot()
	if snap.State != StateFailed {
		t.Errorf("expected failed to stick, got %q", snap.State)
	}
	if snap.Error != "ai service: down" {
		t.Errorf("expected first failure reason to stick, got %q", snap.Error)
	}
	if _, ok := job.Artifact(); ok {
		t.Error("failed job must not expose an artifact")
	}
}

func TestJob_ArtifactUnavailableBeforeCompletion(t *testing.T) {
	job := NewJob("id-1", "Sam", "book.txt", sampleDoc(), nil)
	if _, ok := job.Artifact(); ok {
		t.Error("pending job must not expose an artifact")
	}
	job.Start()
	if _, ok := job.Artifact(); ok {
		t.Error("running job must not expose an artifact")
	}
}

func TestJob_CancelWhileQueued(t *testing.T) {
	job := NewJob("id-1", "Sam", "book.txt", sampleDoc(), nil)
	job.RequestCancel()

	snap := job.Snapshot()
	if snap.State != StateFailed {
		t.Errorf("expected cancelled queued job to fail, got %q", snap.State)
	}
	if snap.Error != "cancelled" {
		t.Errorf("expected reason %q, got %q", "cancelled", snap.Error)
	}
	if job.Start() {
		t.Error("worker must skip a cancelled job")
	}
}

func TestJob_CancelAfterCompletionIsNoop(t *testing.T) {
	job := NewJob("id-1", "Sam", "book.txt", sampleDoc(), nil)
	job.Start()
	job.Complete(&render.Artifact{Filename: "sample.zip"})

	job.RequestCancel()
	if snap := job.Snapshot(); snap.State != StateCompleted {
		t.Errorf("expected completed to stick, got %q", snap.State)
	}
}
