package types

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobStreaming JobStatus = "streaming"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Finished() bool {
	return s == JobDone || s == JobFailed
}

// Job is one plot request. It is created by a producer and mutated only
// through the mailbox by the worker.
type Job struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Path        string    `json:"path"`
	Status      JobStatus `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Lines       int       `json:"lines"`
	Error       string    `json:"error,omitempty"`
}

type StationStatus struct {
	Busy      bool   `json:"busy"`
	Label     string `json:"label,omitempty"`
	Simulated bool   `json:"simulated"`
	Port      string `json:"port"`
	LastJob   *Job   `json:"last_job,omitempty"`
}

type LogMessage struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Type    string `json:"type"` // "grbl", "worker", "web", "system"
}
