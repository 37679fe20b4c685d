package job

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusCancelled is accepted as an update target for external tooling;
	// nothing in this service transitions a job to it.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is an end state. Terminal jobs are never
// updated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one dataset download request and its tracked outcome. Rows are
// created pending, driven to a terminal status by exactly one runner
// goroutine, and never deleted.
type Job struct {
	ID          int64      `json:"id"`
	Status      Status     `json:"status"`
	Exchange    string     `json:"exchange"`
	DataTypes   []string   `json:"data_types"`
	Symbols     []string   `json:"symbols"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	OutputPath  string     `json:"output_path"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Error       string     `json:"error_message,omitempty"`
}
