package models

import (
	"time"
)

// MaxProblems bounds the diagnostic messages kept on a sync result
const MaxProblems = 50

// SyncMode selects how much history a sync covers
type SyncMode string

const (
	SyncModeIncremental SyncMode = "incremental"
	SyncModeFull        SyncMode = "full"
)

// SyncStatus is the outcome of one orchestration run
type SyncStatus string

const (
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
	SyncStatusBusy      SyncStatus = "busy"
)

// SyncResult summarises one orchestration run
type SyncResult struct {
	RunID          string     `json:"run_id,omitempty"`
	Mode           SyncMode   `json:"mode"`
	Status         SyncStatus `json:"status"`
	YearsProcessed []int      `json:"years_processed"`
	Inserted       int        `json:"inserted"`
	Updated        int        `json:"updated"`
	Skipped        int        `json:"skipped"`
	Upserted       int        `json:"upserted"`
	ProblemCount   int        `json:"problem_count"`
	Problems       []string   `json:"problems"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
}

// NewSyncResult starts an empty result for a run
func NewSyncResult(runID string, mode SyncMode, startedAt time.Time) *SyncResult {
	return &SyncResult{
		RunID:          runID,
		Mode:           mode,
		YearsProcessed: []int{},
		Problems:       []string{},
		StartedAt:      startedAt,
	}
}

// AddProblem counts a problem and keeps its message while under MaxProblems
func (r *SyncResult) AddProblem(msg string) {
	r.ProblemCount++
	if len(r.Problems) < MaxProblems {
		r.Problems = append(r.Problems, msg)
	}
}

// AddCounts folds per-year reconcile counts into the run totals
func (r *SyncResult) AddCounts(inserted, updated, skipped int) {
	r.Inserted += inserted
	r.Updated += updated
	r.Skipped += skipped
	r.Upserted = r.Inserted + r.Updated
}

// Duration returns how long the run took
func (r *SyncResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
