package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SougoEdo/tardis-api-middleware/internal/apperror"
)

// mockRepo mirrors the SQLite store's transition semantics so the runner's
// re-reads observe started_at/completed_at the way they would in production.
type mockRepo struct {
	mu          sync.Mutex
	jobs        map[int64]*Job
	nextID      int64
	transitions []Status
	updateErr   error
	interrupted int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{jobs: make(map[int64]*Job), nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.ID = m.nextID
	m.nextID++
	j.CreatedAt = time.Now().UTC()
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (m *mockRepo) ListRecent(_ context.Context, limit int) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for id := m.nextID - 1; id >= 1 && len(out) < limit; id-- {
		if j, ok := m.jobs[id]; ok {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id int64, status Status, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	j, ok := m.jobs[id]
	if !ok {
		return nil // silent no-op, like the store
	}
	now := time.Now().UTC()
	j.Status = status
	if status == StatusRunning && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if status.Terminal() && j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	if errorMessage != "" {
		j.Error = errorMessage
	}
	m.transitions = append(m.transitions, status)
	return nil
}

func (m *mockRepo) MarkInterrupted(_ context.Context) (int64, error) {
	return m.interrupted, nil
}

func (m *mockRepo) recorded() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, len(m.transitions))
	copy(out, m.transitions)
	return out
}

type mockDownloader struct {
	fn func(ctx context.Context, req DownloadRequest) error
}

func (m *mockDownloader) Download(ctx context.Context, req DownloadRequest) error {
	if m.fn == nil {
		return nil
	}
	return m.fn(ctx, req)
}

type mockNotifier struct {
	mu        sync.Mutex
	started   int
	completed int
	failed    int
	lastError string
}

func (m *mockNotifier) JobStarted(_ context.Context, _ *Job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	return true
}

func (m *mockNotifier) JobCompleted(_ context.Context, _ *Job, _ *float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
	return true
}

func (m *mockNotifier) JobFailed(_ context.Context, _ *Job, errorMessage string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
	m.lastError = errorMessage
	return true
}

func (m *mockNotifier) counts() (started, completed, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started, m.completed, m.failed
}

func validSubmit() SubmitRequest {
	return SubmitRequest{
		Exchange:  "binance",
		Symbols:   []string{"BTC-USDT", "ETH-USDT"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
	}
}

func TestService_Submit_AppliesDefaults(t *testing.T) {
	repo := newMockRepo()
	release := make(chan struct{})
	dl := &mockDownloader{fn: func(ctx context.Context, _ DownloadRequest) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	runner := NewRunner(context.Background(), repo, dl, &mockNotifier{})
	svc := NewService(repo, runner, t.TempDir())

	j, err := svc.Submit(context.Background(), validSubmit(), "intern")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The caller got its answer while the download is still blocked.
	if j.ID == 0 {
		t.Fatal("expected assigned job id")
	}
	if j.Status != StatusPending {
		t.Errorf("expected pending at submit time, got %s", j.Status)
	}
	if j.OutputPath == "" {
		t.Error("expected default output path to be resolved")
	}
	if len(j.DataTypes) != 1 || j.DataTypes[0] != "trades" {
		t.Errorf("expected default data types [trades], got %v", j.DataTypes)
	}
	if j.CreatedBy != "intern" {
		t.Errorf("expected created_by intern, got %s", j.CreatedBy)
	}

	close(release)
	runner.Wait()

	got, _ := repo.Get(context.Background(), j.ID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed after drain, got %s", got.Status)
	}
}

func TestService_Submit_CustomOutputPath(t *testing.T) {
	repo := newMockRepo()
	runner := NewRunner(context.Background(), repo, &mockDownloader{}, &mockNotifier{})
	svc := NewService(repo, runner, "./datasets")

	req := validSubmit()
	req.OutputPath = t.TempDir()
	j, err := svc.Submit(context.Background(), req, "intern")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if j.OutputPath != req.OutputPath {
		t.Errorf("expected caller-supplied path %s, got %s", req.OutputPath, j.OutputPath)
	}
	runner.Wait()
}

func TestService_Submit_Validation(t *testing.T) {
	repo := newMockRepo()
	runner := NewRunner(context.Background(), repo, &mockDownloader{}, &mockNotifier{})
	svc := NewService(repo, runner, "./datasets")

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing exchange", func(r *SubmitRequest) { r.Exchange = "" }},
		{"missing symbols", func(r *SubmitRequest) { r.Symbols = nil }},
		{"bad start date", func(r *SubmitRequest) { r.StartDate = "01/01/2024" }},
		{"bad end date", func(r *SubmitRequest) { r.EndDate = "" }},
		{"inverted range", func(r *SubmitRequest) { r.StartDate, r.EndDate = r.EndDate, r.StartDate }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmit()
			tt.mutate(&req)
			_, err := svc.Submit(context.Background(), req, "intern")
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code() != apperror.BadRequest {
				t.Errorf("expected BAD_REQUEST, got %s", appErr.Code())
			}
		})
	}

	if len(repo.jobs) != 0 {
		t.Errorf("invalid submissions must not create jobs, found %d", len(repo.jobs))
	}
}

func TestService_Get_NotFound(t *testing.T) {
	repo := newMockRepo()
	runner := NewRunner(context.Background(), repo, &mockDownloader{}, &mockNotifier{})
	svc := NewService(repo, runner, "./datasets")

	_, err := svc.Get(context.Background(), GetJobRequest{ID: 42})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code() != apperror.NotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestService_Get_InvalidID(t *testing.T) {
	repo := newMockRepo()
	runner := NewRunner(context.Background(), repo, &mockDownloader{}, &mockNotifier{})
	svc := NewService(repo, runner, "./datasets")

	_, err := svc.Get(context.Background(), GetJobRequest{ID: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestListJobsRequest_Normalize(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 50},
		{-3, 50},
		{10, 10},
		{9999, 500},
	}
	for _, tt := range tests {
		if got := (ListJobsRequest{Limit: tt.in}).Normalize(); got != tt.want {
			t.Errorf("Normalize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
