package fixture

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
)

// Server exposes a collab.Client over the routes collab.HTTPClient calls.
type Server struct {
	client  collab.Client
	metrics http.Handler
	logger  *slog.Logger
}

// NewServer serves client. metrics, when non-nil, is mounted at /metrics.
func NewServer(client collab.Client, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{client: client, metrics: metrics, logger: logger.With("component", "fixture")}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/stories", s.stories)
	r.Get("/reels", s.reels)
	r.Post("/views", s.recordView)
	r.Route("/widgets/{id}", func(r chi.Router) {
		r.Post("/responses", s.submitResponse)
	})
	r.Route("/items/{id}", func(r chi.Router) {
		r.Post("/reactions", s.toggleReaction)
	})
	return r
}

func (s *Server) stories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := collab.StoryFilter{Cursor: q.Get("cursor"), AuthorID: q.Get("author_id")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	page, err := s.client.FetchStoryFeed(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) reels(w http.ResponseWriter, r *http.Request) {
	page, err := s.client.FetchReelFeed(r.Context(), r.URL.Query().Get("cursor"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) recordView(w http.ResponseWriter, r *http.Request) {
	var v collab.ViewRecord
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil || v.ItemID == "" {
		writeError(w, http.StatusBadRequest, "invalid view record")
		return
	}
	if err := s.client.RecordView(r.Context(), v); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) submitResponse(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid widget id")
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	res, err := s.client.SubmitInteractiveResponse(r.Context(), id, body.Value)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) toggleReaction(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Emoji == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.client.ToggleReaction(r.Context(), id, body.Emoji); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps backend errors onto the statuses collab.HTTPClient retries
// (5xx) or gives up on (4xx).
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, collab.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInjected):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrBadCursor):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Warn("request rejected", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
