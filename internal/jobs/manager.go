package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookgloss/internal/annotate"
	"bookgloss/internal/llm"
	"bookgloss/internal/parser"
	"bookgloss/internal/render"
)

var (
	// ErrJobNotFound means the id is unknown or the job was evicted.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotReady means the job has not completed yet.
	ErrJobNotReady = errors.New("job not completed")
	// ErrUploadTooLarge means the book exceeds the configured size limit.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
	// ErrQueueFull means the bounded job queue rejected the submission.
	ErrQueueFull = errors.New("job queue is full")
)

const cleanupInterval = 5 * time.Minute

// Config controls the manager's worker pool and limits.
type Config struct {
	WorkerCount    int
	MaxQueueSize   int
	MaxUploadBytes int64
	JobTTL         time.Duration
	Pipeline       annotate.Config
}

// Manager owns the annotation job lifecycle: it validates and parses
// uploads synchronously, queues jobs on a bounded channel, and runs
// them on a fixed worker pool.
type Manager struct {
	store   *Store
	queue   chan *Job
	client  llm.Client
	builder *render.Builder
	cfg     Config
	log     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg Config, client llm.Client, log *slog.Logger) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 32
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:   NewStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		client:  client,
		builder: render.NewBuilder(),
		cfg:     cfg,
		log:     log,
	}
}

// Start launches worker goroutines and the store cleanup loop.
func (m *Manager) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for range m.cfg.WorkerCount {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-m.queue:
					if !ok {
						return
					}
					m.process(workerCtx, job)
				}
			}
		}()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := m.store.EvictExpired(); n > 0 {
					m.log.Info("evicted expired jobs", "count", n)
				}
			}
		}
	}()
}

// Stop gracefully shuts down the worker pool.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	close(m.queue)
	m.wg.Wait()
}

// Submit validates and parses the upload synchronously, so malformed
// input is rejected before any background work starts. On success it
// returns the id of a queued pending job.
func (m *Manager) Submit(raw []byte, filename, readerName string, assets map[string][]byte) (string, error) {
	if m.cfg.MaxUploadBytes > 0 && int64(len(raw)) > m.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrUploadTooLarge, len(raw), m.cfg.MaxUploadBytes)
	}
	if readerName == "" {
		readerName = "the reader"
	}

	p, err := parser.ForFile(filename)
	if err != nil {
		return "", err
	}
	doc, err := p.Parse(bytes.NewReader(raw), filename, assets)
	if err != nil {
		return "", err
	}

	job := NewJob(uuid.NewString(), readerName, filename, doc, assets)
	m.store.Put(job)

	select {
	case m.queue <- job:
	default:
		job.Fail("queue full")
		return "", fmt.Errorf("%w (%d)", ErrQueueFull, m.cfg.MaxQueueSize)
	}

	m.log.Info("job submitted",
		"job_id", job.ID,
		"filename", filename,
		"chapters", len(doc.Chapters),
		"paragraphs", doc.Paragraphs())
	return job.ID, nil
}

// Status returns a point-in-time snapshot of the job.
func (m *Manager) Status(id string) (Snapshot, error) {
	job := m.store.Get(id)
	if job == nil {
		return Snapshot{}, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// Result returns the finished artifact of a completed job.
func (m *Manager) Result(id string) (*render.Artifact, error) {
	job := m.store.Get(id)
	if job == nil {
		return nil, ErrJobNotFound
	}
	art, ok := job.Artifact()
	if !ok {
		return nil, ErrJobNotReady
	}
	return art, nil
}

// Cancel asks a job to stop. Queued jobs fail immediately; running jobs
// stop cooperatively at the next paragraph boundary. Cancelling a
// terminal job is a no-op.
func (m *Manager) Cancel(id string) error {
	job := m.store.Get(id)
	if job == nil {
		return ErrJobNotFound
	}
	job.RequestCancel()
	return nil
}

// QueueDepth returns the current queue depth.
func (m *Manager) QueueDepth() int {
	return len(m.queue)
}

// EvictExpired removes expired terminal jobs outside the cleanup loop.
func (m *Manager) EvictExpired() int {
	return m.store.EvictExpired()
}

// process runs one job end to end: annotate every paragraph, then build
// the downloadable artifact.
func (m *Manager) process(ctx context.Context, job *Job) {
	if !job.Start() {
		return
	}
	log := m.log.With("job_id", job.ID, "title", job.Title)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.bindCancel(cancel)

	pipe := annotate.NewPipeline(m.client, job.ReaderName, m.cfg.Pipeline, m.log)
	if err := pipe.Run(runCtx, job.document(), job); err != nil {
		reason := failReason(err, job)
		log.Error("annotation failed", "reason", reason, "error", err)
		job.Fail(reason)
		return
	}

	art, err := m.builder.Build(job.document(), job.assetBytes())
	if err != nil {
		log.Error("artifact build failed", "error", err)
		job.Fail(fmt.Sprintf("render: %s", err))
		return
	}

	job.Complete(art)
	log.Info("job completed", "artifact", art.Filename, "bytes", len(art.Data))
}

// failReason maps a pipeline error to a stable, user-readable reason
// that distinguishes cancellation, external service failures, and
// internal errors.
func failReason(err error, job *Job) string {
	if errors.Is(err, context.Canceled) && job.CancelRequested() {
		return "cancelled"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled: server shutting down"
	}
	var reqErr *llm.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("ai service: %s", err)
	}
	return err.Error()
}
