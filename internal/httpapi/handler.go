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

	"github.com/naka-gawa/team-pr-stats/internal/domain"
	"github.com/naka-gawa/team-pr-stats/internal/usecase"
)

// StatsAggregator produces a report for a set of authors since a start date.
type StatsAggregator interface {
	Aggregate(ctx context.Context, usernames []string, startDate string, opts usecase.Options) (*domain.StatsReport, error)
}

type Handler struct {
	Stats       StatsAggregator
	Log         *slog.Logger
	CORSOrigins []string
}

func NewHandler(stats StatsAggregator, log *slog.Logger, corsOrigins []string) *Handler {
	return &Handler{
		Stats:       stats,
		Log:         log,
		CORSOrigins: corsOrigins,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.handleRoot)
	r.Post("/github-stats", h.handleGitHubStats)

	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.Log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, handlerName string, err error) {
	var badReq *badRequestError
	if errors.As(err, &badReq) {
		h.Log.Warn("bad request",
			slog.String("handler", handlerName),
			slog.String("message", badReq.msg),
		)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: badReq.msg})
		return
	}

	h.Log.Error("handler error",
		slog.String("handler", handlerName),
		slog.Any("err", err),
	)
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to fetch GitHub stats."})
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Hello World"})
}
