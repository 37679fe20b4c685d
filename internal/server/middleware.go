package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/SougoEdo/tardis-api-middleware/internal/config"
)

type ctxKey string

const (
	requestIDKey ctxKey = "requestID"
	usernameKey  ctxKey = "username"
)

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).String(),
			"requestID", r.Context().Value(requestIDKey),
		)
	})
}

// auth enforces the caller identity rules before any job handler runs:
// X-Username is required, the allow-list gates access when configured, and
// the static API token gates access when configured.
func auth(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-Username")
		if username == "" {
			writeError(w, http.StatusBadRequest, "missing X-Username header, please provide your username")
			return
		}
		if !cfg.IsUserAllowed(username) {
			writeError(w, http.StatusForbidden,
				fmt.Sprintf("user %q is not authorized to use this service", username))
			return
		}
		if cfg.APIToken != "" && r.Header.Get("X-API-Token") != cfg.APIToken {
			writeError(w, http.StatusUnauthorized, "invalid or missing API token")
			return
		}
		ctx := context.WithValue(r.Context(), usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerUsername returns the identity stored by the auth middleware.
func callerUsername(r *http.Request) string {
	username, _ := r.Context().Value(usernameKey).(string)
	return username
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
