package jobs

import (
	"sync"
	"time"

	"plotstation/types"
	"plotstation/utils"

	"github.com/google/uuid"
)

// Mailbox is the single-slot hand-off between producers and the worker. It
// holds at most one job; a submission while occupied is rejected, never
// queued. Every critical section only reads or writes the slot.
type Mailbox struct {
	mu   sync.Mutex
	job  *types.Job
	last *types.Job
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Submit stores job if the slot is empty and reports whether it did. An
// occupied slot is left untouched.
func (m *Mailbox) Submit(job types.Job) bool {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	job.Status = types.JobQueued

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job != nil {
		return false
	}
	m.job = &job
	return true
}

// SubmitFile submits the command file at path, labelled by its base name.
func (m *Mailbox) SubmitFile(path string) (types.Job, bool) {
	job := types.Job{
		ID:          uuid.New().String(),
		Label:       utils.LabelFromPath(path),
		Path:        path,
		SubmittedAt: time.Now(),
	}
	if !m.Submit(job) {
		return types.Job{}, false
	}
	job.Status = types.JobQueued
	return job, true
}

// Peek reports whether a job is present and its label.
func (m *Mailbox) Peek() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return false, ""
	}
	return true, m.job.Label
}

// Status is the busy/ready view shown to the operator.
func (m *Mailbox) Status() (busy bool, label string) {
	return m.Peek()
}

// Snapshot returns a copy of the held job.
func (m *Mailbox) Snapshot() (types.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return types.Job{}, false
	}
	return *m.job, true
}

// Claim marks a queued job as streaming and returns a copy. The slot stays
// occupied until Finish. Returns false when the slot is empty or the job was
// already claimed.
func (m *Mailbox) Claim() (types.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil || m.job.Status != types.JobQueued {
		return types.Job{}, false
	}
	m.job.Status = types.JobStreaming
	m.job.StartedAt = time.Now()
	return *m.job, true
}

// TakeAndClear empties the slot and returns what it held.
func (m *Mailbox) TakeAndClear() (types.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return types.Job{}, false
	}
	job := *m.job
	m.job = nil
	return job, true
}

// Finish records the outcome of the held job, keeps it as the last finished
// job and clears the slot.
func (m *Mailbox) Finish(status types.JobStatus, lines int, errMsg string) (types.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return types.Job{}, false
	}
	job := *m.job
	job.Status = status
	job.Lines = lines
	job.Error = errMsg
	job.FinishedAt = time.Now()

	m.last = &job
	m.job = nil
	return job, true
}

// Last returns the most recently finished job.
func (m *Mailbox) Last() (types.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return types.Job{}, false
	}
	return *m.last, true
}
