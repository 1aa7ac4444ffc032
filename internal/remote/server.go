// Package remote exposes transport controls and status over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/dgnsrekt/narrate/internal/metrics"
	"github.com/dgnsrekt/narrate/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Controller is the player state the server drives. *store.Store
// implements it.
type Controller interface {
	Status() store.Status
	Tracks() []store.TrackInfo
	Play()
	Pause()
	Toggle()
	Next()
	Previous()
	GoToPosition(position int)
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request counts and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStop enables POST /stop, which releases the current segment's audio
// without changing the player state.
func WithStop(fn func()) Option {
	return func(s *Server) {
		s.stop = fn
	}
}

// Server is the remote-control HTTP surface.
type Server struct {
	ctrl    Controller
	metrics *metrics.Metrics
	stop    func()
	logger  *log.Logger
}

// NewServer creates a server for ctrl.
func NewServer(ctrl Controller, opts ...Option) *Server {
	s := &Server{ctrl: ctrl, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("remote")
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(metrics.RequestMiddleware(s.metrics))
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/status", s.handleStatus)
	r.Get("/tracks", s.handleTracks)
	r.Post("/play", s.command(s.ctrl.Play))
	r.Post("/pause", s.command(s.ctrl.Pause))
	r.Post("/toggle", s.command(s.ctrl.Toggle))
	r.Post("/next", s.command(s.ctrl.Next))
	r.Post("/previous", s.command(s.ctrl.Previous))
	r.Post("/position/{n}", s.handlePosition)
	if s.stop != nil {
		r.Post("/stop", s.command(s.stop))
	}
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Remote control listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Debug("Remote control stopped")
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	tracks := s.ctrl.Tracks()
	if tracks == nil {
		tracks = []store.TrackInfo{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// command runs fn and answers with the resulting status. Commands without
// an active document are rejected.
func (s *Server) command(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.ctrl.Status().Active {
			writeError(w, http.StatusConflict, "no active document")
			return
		}
		fn()
		writeJSON(w, http.StatusOK, s.ctrl.Status())
	}
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "position must be a non-negative integer")
		return
	}
	s.command(func() { s.ctrl.GoToPosition(n) })(w, r)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
