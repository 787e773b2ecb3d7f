package jobs

import (
	"context"
	"sync"
	"time"

	"bookgloss/internal/book"
	"bookgloss/internal/render"
)

// State is the lifecycle state of an annotation job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job tracks one book annotation from upload to artifact. It is mutated
// only by the worker that picked it up; everyone else reads snapshots.
// Exactly one terminal transition happens, after which the job is
// immutable.
type Job struct {
	mu sync.Mutex

	ID         string
	ReaderName string
	Filename   string
	Title      string

	state       State
	blocksDone  int
	blocksTotal int
	failReason  string

	createdAt time.Time
	updatedAt time.Time

	doc    *book.Document
	assets map[string][]byte

	artifact *render.Artifact

	cancel          context.CancelFunc
	cancelRequested bool
}

// NewJob creates a pending job for an already-parsed document.
func NewJob(id, readerName, filename string, doc *book.Document, assets map[string][]byte) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		ReaderName:  readerName,
		Filename:    filename,
		Title:       doc.Title,
		state:       StatePending,
		blocksTotal: doc.Paragraphs(),
		createdAt:   now,
		updatedAt:   now,
		doc:         doc,
		assets:      assets,
	}
}

// Snapshot is a read-only, JSON-safe copy of job state.
type Snapshot struct {
	ID          string    `json:"job_id"`
	State       State     `json:"state"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	ReaderName  string    `json:"reader_name"`
	BlocksDone  int       `json:"blocks_done"`
	BlocksTotal int       `json:"blocks_total"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a point-in-time copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:          j.ID,
		State:       j.state,
		Filename:    j.Filename,
		Title:       j.Title,
		ReaderName:  j.ReaderName,
		BlocksDone:  j.blocksDone,
		BlocksTotal: j.blocksTotal,
		Error:       j.failReason,
		CreatedAt:   j.createdAt,
		UpdatedAt:   j.updatedAt,
	}
}

// Advance increments the completed-paragraph counter. Progress is
// monotonically non-decreasing.
func (j *Job) Advance(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.blocksDone += n
	j.updatedAt = time.Now()
}

// Start moves the job from pending to running. It returns false when
// the job was cancelled or completed while still queued, in which case
// the worker must skip it.
func (j *Job) Start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelRequested || j.state != StatePending {
		return false
	}
	j.state = StateRunning
	j.updatedAt = time.Now()
	return true
}

// Complete records the finished artifact. A no-op on terminal jobs.
func (j *Job) Complete(art *render.Artifact) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.terminalLocked() {
		return
	}
	j.state = StateCompleted
	j.artifact = art
	j.updatedAt = time.Now()
}

// Fail records a terminal failure with a user-readable reason. A no-op
// on terminal jobs.
func (j *Job) Fail(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.terminalLocked() {
		return
	}
	j.state = StateFailed
	j.failReason = reason
	j.updatedAt = time.Now()
}

// Artifact returns the finished artifact, or false while the job is not
// completed.
func (j *Job) Artifact() (*render.Artifact, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateCompleted || j.artifact == nil {
		return nil, false
	}
	return j.artifact, true
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.terminalLocked()
}

func (j *Job) terminalLocked() bool {
	return j.state == StateCompleted || j.state == StateFailed
}

// bindCancel attaches the cancel function of the worker's run context
// so a later cancel request can interrupt it.
func (j *Job) bindCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	j.cancel = cancel
	j.mu.Unlock()
}

// RequestCancel asks the job to stop. A queued job fails immediately;
// a running job is interrupted cooperatively and fails once its worker
// observes the cancellation. Terminal jobs are unaffected.
func (j *Job) RequestCancel() {
	j.mu.Lock()
	j.cancelRequested = true
	cancel := j.cancel
	if j.state == StatePending {
		j.state = StateFailed
		j.failReason = "cancelled"
		j.updatedAt = time.Now()
	}
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// CancelRequested reports whether a cancel was asked for.
func (j *Job) CancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

func (j *Job) document() *book.Document {
	return j.doc
}

func (j *Job) assetBytes() map[string][]byte {
	return j.assets
}

func (j *Job) updatedAtSnapshot() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.updatedAt
}
