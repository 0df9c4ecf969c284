package domain

import "time"

// Job is one synchronization context: a root process and its bounds.
type Job struct {
	Name          string
	RootProcessID string
	RootDiagramID string
	MaxDepth      int
	AttachLinks   bool
	Schedule      string
}

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Tree sources
const (
	TreeSourceCache = "cache"
	TreeSourceBuild = "build"
)

// RunSummary is the persisted record of one synchronization run.
type RunSummary struct {
	RunID         string     `json:"run_id"`
	Job           string     `json:"job"`
	RootProcessID string     `json:"root_process_id"`
	Status        string     `json:"status"`
	TreeSource    string     `json:"tree_source,omitempty"`
	TreeSize      int        `json:"tree_size"`
	Created       int        `json:"created"`
	Reused        int        `json:"reused"`
	Skipped       int        `json:"skipped"`
	Failed        int        `json:"failed"`
	Archived      int        `json:"archived"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Apply copies the counters of a sync report into the summary.
func (s *RunSummary) Apply(r *SyncReport) {
	if r == nil {
		return
	}
	s.Created = r.Created
	s.Reused = r.Reused
	s.Skipped = r.Skipped
	s.Failed = r.Failed
	s.Archived = r.Archived
}
