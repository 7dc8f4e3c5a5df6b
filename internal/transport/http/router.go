package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

const defaultListLimit = 10

// API serves the read-only REST views.
type API struct {
	service *app.GameService
	log     *zap.Logger
}

func NewAPI(service *app.GameService, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{service: service, log: log}
}

// NewRouter mounts the game channel, the REST views, health and metrics.
func NewRouter(api *API, ws *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", api.handleLeaderboard)
		r.Get("/users/{userID}/summary", api.handleSummary)
		r.Get("/users/{userID}/history", api.handleHistory)
	})
	return r
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	lb, err := a.service.Leaderboard(r.Context(), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.Summary(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	history, err := a.service.History(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// parseLimit reads ?limit=, defaulting when absent. 0 means everything.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.ErrInvalidLimit
	}
	return n, nil
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		a.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]errorPayload{"error": {Message: err.Error()}})
}

func statusFor(err error) int {
	var perr *domain.PersistenceError
	switch {
	case errors.Is(err, domain.ErrInvalidLimit), errors.Is(err, domain.ErrUserRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionRunning), errors.Is(err, domain.ErrSessionNotRunning),
		errors.Is(err, domain.ErrPlayerElsewhere):
		return http.StatusConflict
	case errors.As(err, &perr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
