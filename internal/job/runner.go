package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Downloader performs the bulk dataset transfer. It blocks until every file
// in the request has been fetched, or returns the first failure.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest) error
}

// DownloadRequest carries the parameters of one transfer.
type DownloadRequest struct {
	Exchange  string
	DataTypes []string
	Symbols   []string
	StartDate string
	EndDate   string
	OutputDir string
}

// Notifier receives job lifecycle signals. Implementations are best-effort:
// they report delivery but never fail the transition that triggered them.
type Notifier interface {
	JobStarted(ctx context.Context, j *Job) bool
	JobCompleted(ctx context.Context, j *Job, durationMinutes *float64) bool
	JobFailed(ctx context.Context, j *Job, errorMessage string) bool
}

// Runner executes submitted jobs, one detached goroutine per job. There is
// no cap on concurrently running jobs and no retry; a job is driven from
// pending through running to exactly one terminal state.
type Runner struct {
	baseCtx  context.Context
	repo     Repository
	dl       Downloader
	notifier Notifier

	wg     sync.WaitGroup
	active atomic.Int64
}

// NewRunner creates a Runner. baseCtx outlives individual HTTP requests;
// jobs keep running after the request that submitted them completes and are
// only interrupted when baseCtx is cancelled at shutdown.
func NewRunner(baseCtx context.Context, repo Repository, dl Downloader, notifier Notifier) *Runner {
	return &Runner{
		baseCtx:  baseCtx,
		repo:     repo,
		dl:       dl,
		notifier: notifier,
	}
}

// Spawn launches the execution goroutine for j and returns immediately.
func (r *Runner) Spawn(j *Job) {
	r.wg.Add(1)
	n := r.active.Add(1)
	slog.Info("job runner spawned", "job", j.ID, "active", n)
	go func() {
		defer r.wg.Done()
		defer r.active.Add(-1)
		r.run(r.baseCtx, j.ID)
	}()
}

// Active returns the number of job goroutines currently alive.
func (r *Runner) Active() int64 { return r.active.Load() }

// Wait blocks until every spawned job has finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) run(ctx context.Context, id int64) {
	j, err := r.repo.Get(ctx, id)
	if err != nil {
		slog.Error("runner: read job", "job", id, "error", err)
		return
	}
	if j == nil {
		// Nothing to mark and nobody waiting; log-only.
		slog.Error("runner: job not found", "job", id)
		return
	}

	if err := r.repo.UpdateStatus(ctx, id, StatusRunning, ""); err != nil {
		// Leave the job in its last durable state.
		slog.Error("runner: mark running", "job", id, "error", err)
		return
	}
	// Re-read for the authoritative started_at; it feeds the duration in the
	// completion notification.
	if cur, getErr := r.repo.Get(ctx, id); getErr == nil && cur != nil {
		j = cur
	}
	r.notifier.JobStarted(ctx, j)

	slog.Info("runner: starting download",
		"job", id,
		"exchange", j.Exchange,
		"dataTypes", j.DataTypes,
		"symbols", j.Symbols,
		"from", j.StartDate,
		"to", j.EndDate,
		"outputPath", j.OutputPath,
	)

	if err := r.execute(ctx, j); err != nil {
		msg := err.Error()
		if uerr := r.repo.UpdateStatus(ctx, id, StatusFailed, msg); uerr != nil {
			slog.Error("runner: mark failed", "job", id, "error", uerr)
			return
		}
		r.notifier.JobFailed(ctx, j, msg)
		slog.Error("runner: download failed", "job", id, "error", msg)
		return
	}

	if err := r.repo.UpdateStatus(ctx, id, StatusCompleted, ""); err != nil {
		slog.Error("runner: mark completed", "job", id, "error", err)
		return
	}
	var duration *float64
	if j.StartedAt != nil {
		m := time.Since(*j.StartedAt).Minutes()
		duration = &m
	}
	r.notifier.JobCompleted(ctx, j, duration)
	slog.Info("runner: download completed", "job", id)
}

// execute prepares the output directory and runs the transfer. The transfer
// error is returned as-is so its message lands verbatim in error_message.
// Panics out of the transfer client are converted into ordinary failures so
// a bad job can never take the process down.
func (r *Runner) execute(ctx context.Context, j *Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("download panicked: %v", p)
		}
	}()

	if mkErr := os.MkdirAll(j.OutputPath, 0o755); mkErr != nil {
		return fmt.Errorf("create output directory: %w", mkErr)
	}

	return r.dl.Download(ctx, DownloadRequest{
		Exchange:  j.Exchange,
		DataTypes: j.DataTypes,
		Symbols:   j.Symbols,
		StartDate: j.StartDate,
		EndDate:   j.EndDate,
		OutputDir: j.OutputPath,
	})
}
