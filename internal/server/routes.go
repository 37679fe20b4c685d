package server

import (
	"net/http"

	"github.com/SougoEdo/tardis-api-middleware/internal/config"
	"github.com/SougoEdo/tardis-api-middleware/internal/job"
)

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(cfg config.Config, jobSvc *job.Service) http.Handler {
	return newMux(cfg, jobSvc)
}

func newMux(cfg config.Config, jobSvc *job.Service) http.Handler {
	h := &handler{jobSvc: jobSvc}

	mux := http.NewServeMux()

	// Health endpoints stay outside the auth gate.
	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("GET /health", h.health)

	authed := func(fn http.HandlerFunc) http.Handler { return auth(cfg, fn) }
	mux.Handle("POST /download", authed(h.submitDownload))
	mux.Handle("GET /jobs", authed(h.listJobs))
	mux.Handle("GET /jobs/{id}", authed(h.getJob))
	mux.Handle("GET /jobs/{id}/status", authed(h.getJobStatus))

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
