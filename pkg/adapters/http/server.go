// Package http exposes running dialogues over HTTP.
//
// It is the presentation boundary of the engine: clients create sessions,
// read snapshots, send the CLICK event and follow state changes as a stream
// of snapshot diffs (Server-Sent Events). Speech hosts either connect through
// the websocket bridge or post collaborator events directly.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/parlance/internal/logging"
	"github.com/aretw0/parlance/internal/presentation/graph"
	"github.com/aretw0/parlance/pkg/adapters/ws"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/aretw0/parlance/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds request bodies.
const maxBodySize = 64 << 10

// Server serves the sessions of one flow.
type Server struct {
	sessions    *session.Manager
	def         *domain.Definition
	hub         *ws.Hub
	transcripts ports.TranscriptSink
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	version     string
}

// Option configures a Server.
type Option func(*Server)

// WithSpeechHub enables the websocket speech bridge.
func WithSpeechHub(hub *ws.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithTranscripts serves recorded conversation turns.
func WithTranscripts(sink ports.TranscriptSink) Option {
	return func(s *Server) {
		s.transcripts = sink
	}
}

// WithGatherer serves metrics from the gatherer on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion is reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates the HTTP handler for the sessions of a flow.
func NewHandler(sessions *session.Manager, def *domain.Definition, opts ...Option) http.Handler {
	s := &Server{
		sessions: sessions,
		def:      def,
		logger:   logging.NewNop(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/graph", s.GetGraph)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/click", s.Click)
			r.Post("/events", s.PostEvent)
			r.Get("/stream", s.Stream)
			r.Get("/speech", s.Speech)
			r.Get("/transcript", s.GetTranscript)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createRequest struct {
	ID string `json:"id,omitempty"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := decode(r, &body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	d, err := s.sessions.Create(r.Context(), body.ID)
	if err != nil {
		s.fail(w, "create session", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, d.Snapshot())
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.sessions.List()})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	d, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, d.Snapshot())
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Close(r.Context(), id); err != nil {
		s.fail(w, "close session", err)
		return
	}
	if s.hub != nil {
		s.hub.Remove(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Click handles POST /sessions/{id}/click, the only command of the UI.
func (s *Server) Click(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, domain.Event{Type: domain.EventClick})
}

// PostEvent handles POST /sessions/{id}/events for speech hosts that
// deliver collaborator events over plain HTTP.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := decode(r, &ev); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if !ev.Type.FromCollaborator() {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("event %q is not a collaborator event", ev.Type))
		return
	}
	s.send(w, r, ev)
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, ev domain.Event) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Send(r.Context(), id, ev); err != nil {
		s.fail(w, "send event", err)
		return
	}
	d, err := s.sessions.Get(id)
	if err != nil {
		s.fail(w, "get session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, d.Snapshot())
}

// Speech handles GET /sessions/{id}/speech, upgrading to the websocket bridge.
func (s *Server) Speech(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, http.StatusNotFound, errors.New("speech bridge is not enabled"))
		return
	}
	id := chi.URLParam(r, "id")
	d, err := s.sessions.Get(id)
	if err != nil {
		s.fail(w, "get session", err)
		return
	}
	s.hub.Serve(w, r, id, d)
}

// GetTranscript handles GET /sessions/{id}/transcript.
func (s *Server) GetTranscript(w http.ResponseWriter, r *http.Request) {
	if s.transcripts == nil {
		s.writeError(w, http.StatusNotFound, errors.New("transcripts are not recorded"))
		return
	}
	entries, err := s.transcripts.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "list transcript", err)
		return
	}
	if entries == nil {
		entries = []domain.TranscriptEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// GetGraph handles GET /graph. The flow is rendered as Mermaid, or as JSON
// with ?format=json. With ?session=ID the active states are highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		s.writeJSON(w, http.StatusOK, s.def)
		return
	}

	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session"); id != "" {
		d, err := s.sessions.Get(id)
		if err != nil {
			s.fail(w, "get session", err)
			return
		}
		overlay = graph.OverlayFromSnapshot(d.Snapshot())
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(s.def, overlay))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"flow":     s.def.ID,
		"version":  s.version,
		"sessions": len(s.sessions.List()),
	})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionExists),
		errors.Is(err, domain.ErrMachineDone),
		errors.Is(err, domain.ErrMachineStopped),
		errors.Is(err, domain.ErrNotStarted):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "err", err)
	}
	s.writeError(w, status, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
