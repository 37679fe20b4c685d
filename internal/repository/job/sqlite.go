package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/SougoEdo/tardis-api-middleware/internal/job"
)

// Millisecond precision so that started_at and completed_at order correctly
// even for very short jobs.
const timeLayout = "2006-01-02T15:04:05.000Z"

const jobColumns = `id, status, exchange, data_types, symbols, start_date, end_date,
		output_path, created_by, created_at, started_at, completed_at, error_message`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, j *domain.Job) error {
	const query = `INSERT INTO download_jobs
		(status, exchange, data_types, symbols, start_date, end_date, output_path, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	dataTypes, err := json.Marshal(j.DataTypes)
	if err != nil {
		return fmt.Errorf("create job: marshal data_types: %w", err)
	}
	symbols, err := json.Marshal(j.Symbols)
	if err != nil {
		return fmt.Errorf("create job: marshal symbols: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.db.ExecContext(ctx, query,
		string(j.Status), j.Exchange, string(dataTypes), string(symbols),
		j.StartDate, j.EndDate, j.OutputPath, j.CreatedBy,
		now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	j.ID, _ = res.LastInsertId()
	j.CreatedAt = now
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs WHERE id = ?`

	j, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	// id DESC breaks ties between rows created within the same millisecond.
	query := `SELECT ` + jobColumns + ` FROM download_jobs
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status domain.Status, errorMessage string) error {
	// One statement so readers never observe a partially applied transition.
	const query = `UPDATE download_jobs SET
		status = ?,
		started_at = CASE WHEN ? = 'running' AND started_at IS NULL THEN ? ELSE started_at END,
		completed_at = CASE WHEN ? IN ('completed', 'failed', 'cancelled') AND completed_at IS NULL THEN ? ELSE completed_at END,
		error_message = CASE WHEN ? != '' THEN ? ELSE error_message END
		WHERE id = ?`

	now := time.Now().UTC().Truncate(time.Millisecond).Format(timeLayout)
	s := string(status)
	res, err := r.db.ExecContext(ctx, query, s, s, now, s, now, errorMessage, errorMessage, id)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Documented behavior: updating an unknown id is not an error.
		slog.Debug("status update for unknown job", "job", id, "status", status)
	}
	return nil
}

func (r *Repository) MarkInterrupted(ctx context.Context) (int64, error) {
	// Pending jobs never reached running, so their started_at stays NULL.
	const query = `UPDATE download_jobs SET
		status = 'failed',
		completed_at = ?,
		error_message = 'interrupted by service restart'
		WHERE status IN ('pending', 'running')`

	now := time.Now().UTC().Truncate(time.Millisecond).Format(timeLayout)
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	j := &domain.Job{}
	var status, dataTypes, symbols, createdStr string
	var startedStr, completedStr, errMsg sql.NullString

	err := row.Scan(
		&j.ID, &status, &j.Exchange, &dataTypes, &symbols,
		&j.StartDate, &j.EndDate, &j.OutputPath, &j.CreatedBy,
		&createdStr, &startedStr, &completedStr, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	j.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(dataTypes), &j.DataTypes); err != nil {
		return nil, fmt.Errorf("unmarshal data_types: %w", err)
	}
	if err := json.Unmarshal([]byte(symbols), &j.Symbols); err != nil {
		return nil, fmt.Errorf("unmarshal symbols: %w", err)
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	j.StartedAt = parseNullTime(startedStr)
	j.CompletedAt = parseNullTime(completedStr)
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	return j, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
