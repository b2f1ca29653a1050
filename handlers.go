package liftoff

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tfkr-ae/liftoff/core"
	"github.com/tfkr-ae/liftoff/dashboard"
	"github.com/tfkr-ae/liftoff/domain"
	"github.com/tfkr-ae/liftoff/launches"
)

// defaultFetchLimit is the number of audit rows returned by /api/fetches without a limit
const defaultFetchLimit = 50

func (server *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(server.Metrics.Middleware)

	r.Get("/healthz", server.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(server.Registry, promhttp.HandlerOpts{}))
	r.Handle("/static/*", http.StripPrefix("/static/", dashboard.StaticHandler()))

	r.Group(func(r chi.Router) {
		r.Use(Compress)

		r.Get("/api/spacex/launches", server.handleLatest)
		r.Get("/api/fetches", server.handleFetches)
		r.Get("/api/fetches/{id}", server.handleFetch)
		r.Get("/api/stats", server.handleStats)

		r.Group(func(r chi.Router) {
			r.Use(server.session)
			r.Get("/", server.handleIndex)
			r.Get("/launches/{id}", server.handleSelect)
			r.Get("/close", server.handleClose)
			r.Post("/retry", server.handleRetry)
			r.Post("/theme", server.handleTheme)
		})

		r.NotFound(server.handleNotFound)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// session opens the view of the requesting browser and stores it in the request context.
func (server *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id uuid.UUID
		if cookie, err := r.Cookie(dashboard.SessionCookie); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed
			}
		}
		theme := themeFromRequest(r)

		view, created, err := server.Sessions.Open(id, theme)
		if err != nil {
			server.WriteLog("ERROR", "opening dashboard session", core.LogWithContext(map[string]any{"error": err.Error()}))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     dashboard.SessionCookie,
				Value:    view.ID.String(),
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
			server.WriteLog("INFO", "dashboard session opened", core.LogWithSessionID(view.ID))
		}
		r = ContextWithCreatedFlag(ContextWithView(r, view), created)
		next.ServeHTTP(w, r)
	})
}

func themeFromRequest(r *http.Request) dashboard.Theme {
	if cookie, err := r.Cookie(dashboard.ThemeCookie); err == nil {
		return dashboard.ParseTheme(cookie.Value)
	}
	return dashboard.ThemeLight
}

func (server *Server) renderView(w http.ResponseWriter, view *dashboard.View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := server.Renderer.RenderDashboard(w, view.Snapshot()); err != nil {
		server.WriteLog("ERROR", "rendering dashboard", core.LogWithSessionID(view.ID), core.LogWithContext(map[string]any{"error": err.Error()}))
	}
}

func (server *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view, _ := ViewFromContext(r.Context())
	if sort := r.URL.Query().Get("sort"); sort != "" {
		view.SetSort(launches.ParseDirection(sort))
	}
	server.renderView(w, view)
}

func (server *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	view, _ := ViewFromContext(r.Context())
	if err := view.Select(chi.URLParam(r, "id")); err != nil {
		server.notFound(w, view.Theme())
		return
	}
	server.renderView(w, view)
}

func (server *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	view, _ := ViewFromContext(r.Context())
	view.CloseOverlay()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (server *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	view, _ := ViewFromContext(r.Context())
	// A session opened by this request is already fetching.
	if created, _ := CreatedFlagFromContext(r.Context()); !created {
		if err := view.Retry(); err != nil {
			server.WriteLog("WARN", "retrying dashboard fetch", core.LogWithSessionID(view.ID), core.LogWithContext(map[string]any{"error": err.Error()}))
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (server *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	view, _ := ViewFromContext(r.Context())
	theme := view.ToggleTheme()
	http.SetCookie(w, &http.Cookie{
		Name:     dashboard.ThemeCookie,
		Value:    string(theme),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (server *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	server.notFound(w, themeFromRequest(r))
}

func (server *Server) notFound(w http.ResponseWriter, theme dashboard.Theme) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := server.Renderer.RenderNotFound(w, theme); err != nil {
		server.Logger.Error("rendering not found page", "error", err)
	}
}

func (server *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fetchResponse struct {
	ID          uuid.UUID      `json:"id"`
	Source      string         `json:"source"`
	URL         string         `json:"url"`
	StatusCode  int            `json:"status_code"`
	Outcome     string         `json:"outcome"`
	RecordCount int            `json:"record_count"`
	Error       string         `json:"error,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	FetchedAt   time.Time      `json:"fetched_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func newFetchResponse(fetch *domain.Fetch) fetchResponse {
	return fetchResponse{
		ID:          fetch.ID,
		Source:      string(fetch.Source),
		URL:         fetch.URL,
		StatusCode:  fetch.StatusCode,
		Outcome:     string(fetch.Outcome),
		RecordCount: fetch.RecordCount,
		Error:       fetch.Error,
		DurationMS:  fetch.Duration.Milliseconds(),
		FetchedAt:   fetch.FetchedAt,
		Metadata:    fetch.Metadata,
	}
}

var errAuditDisabled = errors.New("audit is disabled")

func (server *Server) handleFetches(w http.ResponseWriter, r *http.Request) {
	if server.Repo == nil {
		writeError(w, http.StatusNotFound, errAuditDisabled.Error())
		return
	}
	limit := defaultFetchLimit
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit should be a positive integer")
			return
		}
		limit = parsed
	}

	fetches, err := server.Repo.GetFetches(limit)
	if err != nil {
		server.WriteLog("ERROR", "listing fetches", core.LogWithContext(map[string]any{"error": err.Error()}))
		writeError(w, http.StatusInternalServerError, ProxyInternalMessage)
		return
	}
	response := make([]fetchResponse, 0, len(fetches))
	for _, fetch := range fetches {
		response = append(response, newFetchResponse(fetch))
	}
	writeJSON(w, http.StatusOK, response)
}

type logResponse struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	SessionID *uuid.UUID     `json:"session_id,omitempty"`
}

type fetchDetailResponse struct {
	fetchResponse
	Logs []logResponse `json:"logs"`
}

// handleFetch returns one audited fetch with the log entries written about it.
func (server *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if server.Repo == nil {
		writeError(w, http.StatusNotFound, errAuditDisabled.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "fetch id should be a uuid")
		return
	}

	fetch, err := server.Repo.GetFetch(id)
	if errors.Is(err, domain.ErrFetchNotFound) {
		writeError(w, http.StatusNotFound, domain.ErrFetchNotFound.Error())
		return
	}
	var logs []*domain.Log
	if err == nil {
		logs, err = server.Repo.GetFetchLogs(id)
	}
	if err != nil {
		server.WriteLog("ERROR", "reading fetch", core.LogWithContext(map[string]any{"fetch_id": id.String(), "error": err.Error()}))
		writeError(w, http.StatusInternalServerError, ProxyInternalMessage)
		return
	}

	response := fetchDetailResponse{
		fetchResponse: newFetchResponse(fetch),
		Logs:          make([]logResponse, 0, len(logs)),
	}
	for _, log := range logs {
		response.Logs = append(response.Logs, logResponse{
			ID:        log.ID,
			Timestamp: log.Timestamp,
			Level:     log.Level,
			Message:   log.Message,
			Context:   log.Context,
			SessionID: log.SessionID,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

type statsResponse struct {
	Fetches       int `json:"fetches"`
	FailedFetches int `json:"failed_fetches"`
	Logs          int `json:"logs"`
	Sessions      int `json:"sessions"`
}

func (server *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if server.Repo == nil {
		writeError(w, http.StatusNotFound, errAuditDisabled.Error())
		return
	}
	var (
		stats statsResponse
		err   error
	)
	stats.Sessions = server.Sessions.Len()
	if stats.Fetches, err = server.Repo.CountFetches(); err == nil {
		if stats.FailedFetches, err = server.Repo.CountFailedFetches(); err == nil {
			stats.Logs, err = server.Repo.CountLogs()
		}
	}
	if err != nil {
		server.WriteLog("ERROR", "counting audit rows", core.LogWithContext(map[string]any{"error": err.Error()}))
		writeError(w, http.StatusInternalServerError, ProxyInternalMessage)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
