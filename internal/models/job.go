package models

import "time"

// JobStatus represents the status of a processing job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// Job represents an asynchronous statement processing job.
type Job struct {
	ID          string     `json:"id"`
	FileID      string     `json:"fileId"`
	FileName    string     `json:"fileName"`
	Status      JobStatus  `json:"status"`
	Stage       string     `json:"stage"`      // Current stage label
	StageIndex  int        `json:"stageIndex"` // -1 when the stage is outside the sequence
	Progress    float64    `json:"progress"`   // 0-100
	ResultID    string     `json:"resultId,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusError
}
