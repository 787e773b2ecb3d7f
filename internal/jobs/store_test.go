package jobs

import (
	"testing"
	"time"
)

func TestStore_PutGet(t *testing.T) {
	s := NewStore(time.Hour)
	job := NewJob("id-1", "Sam", "book.txt", sampleDoc(), nil)
	s.Put(job)

	if got := s.Get("id-1"); got != job {
		t.Error("expected stored job back")
	}
	if got := s.Get("missing"); got != nil {
		t.Errorf("expected nil for unknown id, got %v", got)
	}
}

func TestStore_EvictsOnlyExpiredTerminalJobs(t *testing.T) {
	s := NewStore(time.Millisecond)

	done := NewJob("done", "Sam", "book.txt", sampleDoc(), nil)
	done.Start()
	done.Fail("ai service: down")
	s.Put(done)

	running := NewJob("running", "Sam", "book.txt", sampleDoc(), nil)
	running.Start()
	s.Put(running)

	time.Sleep(5 * time.Millisecond)
	if n := s.EvictExpired(); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if s.Get("done") != nil {
		t.Error("expected expired terminal job to be evicted")
	}
	if s.Get("running") == nil {
		t.Error("in-flight job must never be evicted")
	}
}

func TestStore_KeepsFreshTerminalJobs(t *testing.T) {
	s := NewStore(time.Hour)
	job := NewJob("id-1", "Sam", "book.txt", sampleDoc(), nil)
	job.Start()
	job.Complete(nil)
	s.Put(job)

	if n := s.EvictExpired(); n != 0 {
		t.Errorf("expected no evictions within TTL, got %d", n)
	}
}
