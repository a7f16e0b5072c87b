// Package web serves the calendar UI bundle and a small JSON API over a
// plain ServeMux. The root route injects the server-held Gemini API key into
// the page; everything stateful goes through the app controller.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sambabiba/shinbis-calendar/internal/app"
	"github.com/sambabiba/shinbis-calendar/internal/assist"
	"github.com/sambabiba/shinbis-calendar/internal/config"
	"github.com/sambabiba/shinbis-calendar/internal/dates"
	"github.com/sambabiba/shinbis-calendar/internal/ical"
	appLog "github.com/sambabiba/shinbis-calendar/internal/log"
	"github.com/sambabiba/shinbis-calendar/internal/model"
	"github.com/sambabiba/shinbis-calendar/internal/validate"
)

// Server provides the HTTP surface: static UI, key injection, and the
// month/week/event/assist API.
type Server struct {
	cfg  *config.Config
	ctrl *app.Controller
	mux  *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, ctrl *app.Controller) *Server {
	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartServer starts an HTTP server bound to cfg.Listen.
func StartServer(_ context.Context, cfg *config.Config, ctrl *app.Controller) error {
	s := NewServer(cfg, ctrl)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/month", s.handleMonth)
	s.mux.HandleFunc("/api/week", s.handleWeek)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/assist", s.handleAssist)
	s.mux.HandleFunc("/api/key", s.handleKey)
	s.mux.HandleFunc("/api/export.ics", s.handleExport)

	// Root gets the key-injected index; everything else non-/api/* is
	// served straight from the static dir.
	s.mux.Handle("/", s.staticHandler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticHandler serves the UI bundle. The exact root path is special-cased so
// the API key injection happens on the main document only.
func (s *Server) staticHandler() http.Handler {
	fileServer := http.FileServer(http.Dir(s.cfg.StaticDir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// API paths that fell through have no handler; don't answer
		// them with HTML.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}

		if path == "/" || path == "/index.html" {
			s.serveIndex(w, r)
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

// serveIndex reads the main document and injects a script defining the
// page-global API key immediately before the closing head tag. A missing key
// injects an empty string; that is not an error, the page falls back to its
// local key setup flow.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	indexPath := filepath.Join(s.cfg.StaticDir, "index.html")
	html, err := os.ReadFile(indexPath)
	if err != nil {
		appLog.Error("failed to read index.html", err, "path", indexPath)
		http.Error(w, "index.html not found", http.StatusInternalServerError)
		return
	}

	injected := strings.Replace(string(html), "</head>", keyScript(s.cfg.Gemini.APIKey)+"</head>", 1)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(injected))
}

// keyScript renders the injected script tag. The key is quoted into a JS
// string literal; backslashes and quotes are escaped so the markup cannot be
// broken out of.
func keyScript(key string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "</", `<\/`).Replace(key)
	return "<script>\n  window.GEMINI_API_KEY = '" + escaped + "';\n</script>\n"
}

// handleMonth returns the 42-cell month grid.
//
// GET /api/month?year=2024&month=2
// Missing parameters default to the current month.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	year := parseIntDefault(r.URL.Query().Get("year"), now.Year())
	month := parseIntDefault(r.URL.Query().Get("month"), int(now.Month()))
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1-12")
		return
	}

	cells := s.ctrl.MonthGrid(year, time.Month(month))
	writeJSON(w, http.StatusOK, map[string]any{
		"year":  year,
		"month": month,
		"cells": cells,
	})
}

// handleWeek returns the 7x4 week grid for the week containing ?date=.
//
// GET /api/week?date=2024-06-24
// A missing date means the current week. The server normalizes to Sunday.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	day := time.Now()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := dates.ParseKey(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	writeJSON(w, http.StatusOK, s.ctrl.WeekGrid(day))
}

// eventRequest is the JSON body for event creation and updates.
type eventRequest struct {
	Date        string         `json:"date"`
	ID          int64          `json:"id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    model.Priority `json:"priority"`
	AllDay      bool           `json:"isAllDay"`
	StartTime   string         `json:"startTime"`
	EndTime     string         `json:"endTime"`
	Color       model.Color    `json:"color"`
}

func (req *eventRequest) draft() validate.Draft {
	return validate.Draft{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AllDay:      req.AllDay,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Color:       req.Color,
	}
}

// handleEvents is the CRUD surface for one day's events.
//
//	GET    /api/events?date=2024-02-29
//	POST   /api/events            {date, title, ...}
//	PUT    /api/events            {date, id, title, ...}
//	DELETE /api/events?date=...&id=...
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		dateKey := r.URL.Query().Get("date")
		if _, err := dates.ParseKey(dateKey); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"date":   dateKey,
			"events": s.ctrl.EventsOn(dateKey),
		})

	case http.MethodPost:
		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ev, err := s.ctrl.AddEvent(req.Date, req.draft())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ev)

	case http.MethodPut:
		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ev, err := s.ctrl.UpdateEvent(req.Date, req.ID, req.draft())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ev)

	case http.MethodDelete:
		dateKey := r.URL.Query().Get("date")
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "id must be an integer")
			return
		}
		if err := s.ctrl.DeleteEvent(dateKey, id); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAssist runs one natural-language submission through the assistant.
//
// POST /api/assist {"message": "meeting tomorrow at 2pm"}
func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ev, err := s.ctrl.AssistAdd(r.Context(), req.Message)
	if err != nil {
		writeAssistError(w, err)
		return
	}
	if ev == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"added":   false,
			"message": "could not extract an event from that message",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added": true,
		"event": ev,
	})
}

// handleKey manages the locally-entered API key.
//
//	POST   /api/key {"key": "AIza..."}  — validate and store
//	DELETE /api/key                     — reset, forcing the setup flow
func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Key string `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.ctrl.SetAPIKey(strings.TrimSpace(req.Key)); err != nil {
			writeError(w, http.StatusBadRequest, "key must start with AIza and be 35-45 characters")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"configured": true})

	case http.MethodDelete:
		s.ctrl.ResetAPIKey()
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleExport serves the whole calendar as an iCalendar feed.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := ical.Export(s.ctrl.Snapshot())
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// writeAppError maps controller/validation errors onto HTTP statuses. None
// of these are fatal; the client re-prompts the user.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validate.ErrEmptyTitle),
		errors.Is(err, validate.ErrMalformedTime),
		errors.Is(err, validate.ErrEndBeforeStart),
		errors.Is(err, app.ErrBadDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeAssistError maps adapter errors. An auth failure answers 401 with a
// distinct code so the client can trigger its key-reset flow.
func writeAssistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assist.ErrNoKey):
		writeJSON(w, http.StatusPreconditionRequired, errResp{Error: "no API key configured", Code: "no_key"})
	case errors.Is(err, assist.ErrAuth):
		writeJSON(w, http.StatusUnauthorized, errResp{Error: "API key rejected", Code: "auth"})
	case errors.Is(err, assist.ErrEndpointNotFound):
		writeError(w, http.StatusBadGateway, "AI endpoint not found")
	case errors.Is(err, assist.ErrBadRequest), errors.Is(err, assist.ErrParse):
		writeError(w, http.StatusBadGateway, "AI request failed")
	case errors.Is(err, app.ErrAssistBusy):
		writeError(w, http.StatusTooManyRequests, "a request is already pending")
	case errors.Is(err, app.ErrBadDate),
		errors.Is(err, validate.ErrEmptyTitle),
		errors.Is(err, validate.ErrMalformedTime),
		errors.Is(err, validate.ErrEndBeforeStart):
		writeError(w, http.StatusUnprocessableEntity, "AI proposal failed validation: "+err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		writeError(w, http.StatusBadGateway, "request cancelled")
	default:
		var se *assist.StatusError
		if errors.As(err, &se) {
			writeError(w, http.StatusBadGateway, se.Error())
			return
		}
		appLog.Error("assist request failed", err)
		writeError(w, http.StatusBadGateway, "AI request failed")
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
