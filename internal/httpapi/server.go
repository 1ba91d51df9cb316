// Package httpapi is the HTTP boundary of the weaver service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/specs-feup/weaver/internal/log"
	"github.com/specs-feup/weaver/internal/model"
	"github.com/specs-feup/weaver/internal/session"
)

// Submitter runs a job to completion, weave.Dispatcher in production.
type Submitter interface {
	Submit(ctx context.Context, req model.JobRequest) (model.JobResult, error)
}

type Config struct {
	MaxBody     int64
	CORSOrigins []string
	Metrics     http.Handler // nil disables GET /metrics
}

type handler struct {
	submitter Submitter
	sessions  *session.Manager
	maxBody   int64
}

// NewRouter returns the handler serving
//
//	GET  /health
//	POST /api/weave
//	GET  /metrics
func NewRouter(submitter Submitter, sessions *session.Manager, cfg Config) http.Handler {
	h := handler{
		submitter: submitter,
		sessions:  sessions,
		maxBody:   cfg.MaxBody,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Post("/api/weave", h.weave)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	return r
}

func (h handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h handler) weave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	body, flags, err := decodeRequest(r, h.maxBody)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		slog.InfoContext(ctx, "rejecting request", "error", err)
		writeError(w, status, err)
		return
	}

	id := uuid.NewString()
	req := model.JobRequest{
		Tool:           body.Tool,
		SourceCode:     body.SourceCode,
		SourceFilename: body.SourceFilename,
		ScriptCode:     body.Script,
		Args:           flags,
		SessionDir:     h.sessions.Path(id),
	}

	res, err := h.submitter.Submit(ctx, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]model.JobResult{"result": res})
	case errors.Is(err, model.ErrValidation):
		slog.InfoContext(ctx, "invalid job", "error", err)
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(ctx, "job not started", "error", err)
		writeError(w, http.StatusServiceUnavailable, errors.New("no execution slot became available"))
	default:
		slog.ErrorContext(ctx, "job failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger logs every request with its id. The id is also stored in the
// context, so job logs can be correlated with the request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := log.ContextAttrs(r.Context(), slog.String("request_id", middleware.GetReqID(r.Context())))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			slog.InfoContext(ctx, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"took", time.Since(start),
			)
		}()
		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}
