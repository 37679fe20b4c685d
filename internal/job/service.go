package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SougoEdo/tardis-api-middleware/internal/apperror"
)

type Service struct {
	repo              Repository
	runner            *Runner
	defaultOutputPath string
}

func NewService(repo Repository, runner *Runner, defaultOutputPath string) *Service {
	return &Service{
		repo:              repo,
		runner:            runner,
		defaultOutputPath: defaultOutputPath,
	}
}

// Submit validates the request, persists a pending job and hands it to the
// runner. It returns as soon as the row is durable; the download itself
// happens on the runner's goroutine.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, username string) (*Job, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	dataTypes := req.DataTypes
	if len(dataTypes) == 0 {
		dataTypes = []string{"trades"}
	}

	// Resolved once, before the record exists; never changed afterwards.
	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = s.defaultOutputPath
	}

	j := &Job{
		Status:     StatusPending,
		Exchange:   req.Exchange,
		DataTypes:  dataTypes,
		Symbols:    req.Symbols,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		OutputPath: outputPath,
		CreatedBy:  username,
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.runner.Spawn(j)

	slog.Info("job submitted", "job", j.ID, "exchange", j.Exchange, "user", username)
	return j, nil
}

func (s *Service) Get(ctx context.Context, req GetJobRequest) (*Job, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}
	j, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if j == nil {
		return nil, apperror.New(apperror.NotFound, fmt.Sprintf("job %d not found", req.ID))
	}
	return j, nil
}

func (s *Service) List(ctx context.Context, req ListJobsRequest) ([]Job, error) {
	jobs, err := s.repo.ListRecent(ctx, req.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// RecoverInterrupted fails jobs left pending or running by a previous
// process. Re-queueing them is not an option: a job gets exactly one
// execution, and its status never moves backwards.
func (s *Service) RecoverInterrupted(ctx context.Context) error {
	n, err := s.repo.MarkInterrupted(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("failed jobs interrupted by restart", "count", n)
	}
	return nil
}
