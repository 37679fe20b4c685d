package tardis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/SougoEdo/tardis-api-middleware/internal/job"
)

type recordingHandler struct {
	mu    sync.Mutex
	paths []string
	auths []string
	fail  bool
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.paths = append(h.paths, r.URL.Path)
	h.auths = append(h.auths, r.Header.Get("Authorization"))
	h.mu.Unlock()

	if h.fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "data for %s", r.URL.Path)
}

func request(dir string) job.DownloadRequest {
	return job.DownloadRequest{
		Exchange:  "binance",
		DataTypes: []string{"trades"},
		Symbols:   []string{"BTC-USDT", "ETH-USDT"},
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
		OutputDir: dir,
	}
}

func TestDownload(t *testing.T) {
	h := &recordingHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	dir := t.TempDir()
	c := New("secret-key", WithBaseURL(srv.URL), WithWorkers(2))
	if err := c.Download(context.Background(), request(dir)); err != nil {
		t.Fatalf("download: %v", err)
	}

	// 1 data type x 2 symbols x 2 days
	wantPaths := []string{
		"/v1/binance/trades/2024/01/01/BTC-USDT.csv.gz",
		"/v1/binance/trades/2024/01/01/ETH-USDT.csv.gz",
		"/v1/binance/trades/2024/01/02/BTC-USDT.csv.gz",
		"/v1/binance/trades/2024/01/02/ETH-USDT.csv.gz",
	}
	sort.Strings(h.paths)
	if len(h.paths) != len(wantPaths) {
		t.Fatalf("expected %d requests, got %d: %v", len(wantPaths), len(h.paths), h.paths)
	}
	for i := range wantPaths {
		if h.paths[i] != wantPaths[i] {
			t.Errorf("request %d: got %s, want %s", i, h.paths[i], wantPaths[i])
		}
	}
	for _, auth := range h.auths {
		if auth != "Bearer secret-key" {
			t.Errorf("expected bearer auth, got %q", auth)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 files, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, "binance_trades_2024-01-01_BTC-USDT.csv.gz"))
	if err != nil {
		t.Fatalf("expected dataset file: %v", err)
	}
	if !strings.Contains(string(data), "/v1/binance/trades/2024/01/01/BTC-USDT.csv.gz") {
		t.Errorf("unexpected file contents: %s", data)
	}
}

func TestDownload_ServerError(t *testing.T) {
	h := &recordingHandler{fail: true}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New("secret-key", WithBaseURL(srv.URL), WithWorkers(1))
	err := c.Download(context.Background(), request(t.TempDir()))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unexpected status 500") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestDownload_NoAPIKeyOmitsAuth(t *testing.T) {
	h := &recordingHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New("", WithBaseURL(srv.URL))
	req := request(t.TempDir())
	req.Symbols = []string{"BTC-USDT"}
	req.EndDate = req.StartDate
	if err := c.Download(context.Background(), req); err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(h.auths) != 1 || h.auths[0] != "" {
		t.Errorf("expected no auth header, got %v", h.auths)
	}
}

func TestDownload_InvalidDates(t *testing.T) {
	c := New("key")
	req := request(t.TempDir())
	req.StartDate = "not-a-date"
	if err := c.Download(context.Background(), req); err == nil {
		t.Fatal("expected error for invalid start date")
	}
}
