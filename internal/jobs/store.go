package jobs

import (
	"sync"
	"time"
)

// Store is a thread-safe in-memory job registry with TTL eviction.
// Only terminal jobs are evicted; an in-flight job stays visible no
// matter how long it runs.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *Store) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *Store) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// EvictExpired removes terminal jobs whose last update is older than
// the TTL and returns how many were removed.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	evicted := 0
	for id, job := range s.jobs {
		if !job.Terminal() {
			continue
		}
		if now.Sub(job.updatedAtSnapshot()) > s.ttl {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}
