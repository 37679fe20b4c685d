// Package tardis downloads historical market-data archives from the
// tardis.dev datasets API. Datasets are daily gzipped CSV files, one per
// (data type, symbol, day) combination.
package tardis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SougoEdo/tardis-api-middleware/internal/job"
)

const (
	defaultBaseURL = "https://datasets.tardis.dev"
	dateFormat     = "2006-01-02"
)

// Client fetches dataset files. It implements job.Downloader.
type Client struct {
	apiKey  string
	workers int
	baseURL string
	client  *http.Client
}

// New creates a Client with the given options applied.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		workers: 5,
		baseURL: defaultBaseURL,
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithWorkers sets the number of files downloaded in parallel.
func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBaseURL overrides the default datasets endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

type task struct {
	dataType string
	symbol   string
	day      time.Time
}

// Download fetches every file in the request into req.OutputDir, blocking
// until all are on disk. The first failure cancels the remaining fetches and
// is returned.
func (c *Client) Download(ctx context.Context, req job.DownloadRequest) error {
	start, err := time.Parse(dateFormat, req.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", req.StartDate, err)
	}
	end, err := time.Parse(dateFormat, req.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", req.EndDate, err)
	}

	var tasks []task
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, dt := range req.DataTypes {
			for _, sym := range req.Symbols {
				tasks = append(tasks, task{dataType: dt, symbol: sym, day: day})
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, t := range tasks {
		g.Go(func() error {
			return c.fetch(ctx, req.Exchange, t, req.OutputDir)
		})
	}
	return g.Wait()
}

func (c *Client) fetch(ctx context.Context, exchange string, t task, dir string) error {
	url := fmt.Sprintf("%s/v1/%s/%s/%04d/%02d/%02d/%s.csv.gz",
		c.baseURL, exchange, t.dataType,
		t.day.Year(), int(t.day.Month()), t.day.Day(), t.symbol,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s %s %s: %w", t.dataType, t.symbol, t.day.Format(dateFormat), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s %s %s: unexpected status %d",
			t.dataType, t.symbol, t.day.Format(dateFormat), resp.StatusCode)
	}

	name := fmt.Sprintf("%s_%s_%s_%s.csv.gz", exchange, t.dataType, t.day.Format(dateFormat), t.symbol)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path) // drop the partial file
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
