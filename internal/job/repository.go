package job

import "context"

type Repository interface {
	// Create persists j with its current status and fills in the assigned ID
	// and creation timestamp.
	Create(ctx context.Context, j *Job) error
	// Get returns the job or (nil, nil) when the id is unknown.
	Get(ctx context.Context, id int64) (*Job, error)
	// ListRecent returns up to limit jobs, most recently created first.
	ListRecent(ctx context.Context, limit int) ([]Job, error)
	// UpdateStatus applies the transition side effects: started_at is set on
	// first entry to running, completed_at on first entry to a terminal
	// status, error_message when errorMessage is non-empty. An unknown id is
	// a silent no-op.
	UpdateStatus(ctx context.Context, id int64, status Status, errorMessage string) error
	// MarkInterrupted fails every job left pending or running by a previous
	// process and returns how many rows it touched.
	MarkInterrupted(ctx context.Context) (int64, error)
}
