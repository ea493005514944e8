package models

import (
	"database/sql"
	"time"
)

// JobStatus is the lifecycle state of an analysis job. Transitions are
// monotone: pending -> processing -> completed | failed. Terminal states
// are absorbing.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is absorbing.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// AnalysisJob tracks one batch analysis request. GamesCompleted never
// exceeds TotalGames and never decreases.
type AnalysisJob struct {
	ID             string         `db:"id" json:"jobId"`
	UserID         string         `db:"user_id" json:"userId"`
	Status         JobStatus      `db:"status" json:"status"`
	TotalGames     int            `db:"total_games" json:"totalGames"`
	GamesCompleted int            `db:"games_completed" json:"gamesCompleted"`
	Depth          int            `db:"depth" json:"depth"`
	Error          sql.NullString `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}
