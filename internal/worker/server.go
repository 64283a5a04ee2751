// Package worker runs the localhost HTTP service that bridges the sidecar
// to its webview: state snapshots, session browsing, summaries, coaching
// dismissal, uploads and an SSE event stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/sessions"
	"github.com/DevArk-AI/devark/internal/state"
	"github.com/DevArk-AI/devark/internal/summary"
	"github.com/DevArk-AI/devark/internal/worker/sse"
	"github.com/DevArk-AI/devark/pkg/models"
)

// DefaultPort is the local port the webview connects to.
const DefaultPort = 43717

// SessionSource serves the unified session index.
type SessionSource interface {
	List(ctx context.Context, f sessions.Filter) ([]models.SessionIndex, error)
	Details(ctx context.Context, id string) (*models.SessionDetails, error)
}

// SummarySource builds period summaries.
type SummarySource interface {
	Generate(ctx context.Context, period summary.Period, ref time.Time) (*summary.Summary, error)
}

// CoachingDismisser clears the active coaching.
type CoachingDismisser interface {
	Dismiss()
}

// UploadFunc runs one upload of pending sessions.
type UploadFunc func(ctx context.Context) (*models.UploadResult, error)

// Config wires the server's collaborators.
type Config struct {
	Port      int
	State     *state.Store
	Sessions  SessionSource
	Summaries SummarySource
	Coaching  CoachingDismisser
	Upload    UploadFunc
	Version   string
}

// Server is the webview bridge.
type Server struct {
	cfg         Config
	broadcaster *sse.Broadcaster
	httpServer  *http.Server
}

// NewServer builds the server and subscribes it to reducer snapshots so
// every dispatch reaches connected webviews.
func NewServer(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	s := &Server{
		cfg:         cfg,
		broadcaster: sse.NewBroadcaster(),
	}
	if cfg.State != nil {
		cfg.State.Subscribe(func(snapshot state.State) {
			s.broadcaster.Broadcast(sse.Event{Type: "state", Data: snapshot})
		})
	}
	return s
}

// Broadcast pushes a named event to connected webviews.
func (s *Server) Broadcast(eventType string, data any) {
	s.broadcaster.Broadcast(sse.Event{Type: eventType, Data: data})
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)
		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{id}", s.handleSessionDetails)
		r.Get("/summary/{period}", s.handleSummary)
		r.Get("/events", s.broadcaster.ServeHTTP)
		r.Post("/coaching/dismiss", s.handleDismissCoaching)
		r.Post("/upload", s.handleUpload)
	})
	return r
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	log.Info().Int("port", s.cfg.Port).Msg("Worker service listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.cfg.State == nil {
		writeError(w, http.StatusServiceUnavailable, "state unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.State.State())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "sessions unavailable")
		return
	}

	filter := sessions.Filter{}
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("source"); v != "" {
		filter.Sources = []string{v}
	}
	if v := q.Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &filter.Limit); err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	list, err := s.cfg.Sessions.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleSessionDetails(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "sessions unavailable")
		return
	}
	details, err := s.cfg.Sessions.Details(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Summaries == nil {
		writeError(w, http.StatusServiceUnavailable, "summaries unavailable")
		return
	}
	period, err := summary.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.cfg.Summaries.Generate(r.Context(), period, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDismissCoaching(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Coaching != nil {
		s.cfg.Coaching.Dismiss()
	}
	if s.cfg.State != nil {
		s.cfg.State.Dispatch(state.DismissCoaching{})
	}
	writeJSON(w, http.StatusOK, map[string]any{"dismissed": true})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Upload == nil {
		writeError(w, http.StatusServiceUnavailable, "upload unavailable")
		return
	}
	result, err := s.cfg.Upload(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
