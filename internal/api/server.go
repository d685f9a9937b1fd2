package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/groundtrack/internal/auth"
	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/health"
	"github.com/star/groundtrack/internal/httputil"
	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/passes"
	"github.com/star/groundtrack/internal/stream"
	"github.com/star/groundtrack/internal/tle"
)

// Config holds the HTTP surface settings.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool
	NoradID    string // default id for POST /api/v1/fetch
	Creds      tle.Credentials
	Stream     stream.Config
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. Extra readiness checks run in
// addition to the loaded-elements check.
func NewServer(cfg Config, sess *groundtrack.Session, store kvstore.Store, pred *passes.Predictor, logger *slog.Logger, ready ...health.Check) *Server {
	mux := http.NewServeMux()

	ready = append([]health.Check{elementsLoaded(sess)}, ready...)

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(ready...))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/state", stateHandler(store))
	mux.HandleFunc("GET /api/v1/state/{key}", stateKeyHandler(store))
	mux.HandleFunc("POST /api/v1/fetch", fetchHandler(sess, cfg))
	mux.HandleFunc("POST /api/v1/refresh/snapshot", refreshHandler(sess.RefreshSnapshot))
	mux.HandleFunc("POST /api/v1/refresh/series", refreshHandler(sess.RefreshSeries))
	mux.HandleFunc("GET /api/v1/passes", passesHandler(sess, pred))

	cfg.Stream.TrustProxy = cfg.TrustProxy
	streams := stream.NewHandler(sess, store, cfg.Stream, logger)
	mux.HandleFunc("GET /api/v1/stream/state", streams.HandleState)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Streams never go idle; end them when Shutdown starts.
	httpServer.RegisterOnShutdown(streams.Close)

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func elementsLoaded(sess *groundtrack.Session) health.Check {
	return func(context.Context) error {
		if _, ok := sess.Elements(); !ok {
			return groundtrack.ErrNoElements
		}
		return nil
	}
}

func stateHandler(store kvstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := store.Keys(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		state := make(map[string]json.RawMessage, len(keys))
		for _, k := range keys {
			v, err := store.Get(r.Context(), k)
			if errors.Is(err, kvstore.ErrNotFound) {
				// Removed between Keys and Get.
				continue
			}
			if err != nil {
				writeError(w, err)
				return
			}
			state[k] = v
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func stateKeyHandler(store kvstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := store.Get(r.Context(), r.PathValue("key"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(v)
	}
}

func fetchHandler(sess *groundtrack.Session, cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("norad_id")
		if id == "" {
			id = cfg.NoradID
		}
		if id != "" {
			if _, err := strconv.Atoi(id); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "norad_id must be an integer"})
				return
			}
		}

		if err := sess.Fetch(r.Context(), id, cfg.Creds); err != nil {
			writeError(w, err)
			return
		}
		el, _ := sess.Elements()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"norad_id": el.NORADID,
			"name":     el.Name,
			"epoch":    el.Epoch,
		})
	}
}

func refreshHandler(refresh func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := refresh(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// passesHandler serves GET /api/v1/passes?hours=24&min_elevation=10&max=10.
func passesHandler(sess *groundtrack.Session, pred *passes.Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := passes.Request{Horizon: 24 * time.Hour, MaxPasses: 10}

		if v := q.Get("hours"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 168 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid hours parameter, must be 1-168"})
				return
			}
			req.Horizon = time.Duration(n) * time.Hour
		}
		if v := q.Get("min_elevation"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 || f > 90 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_elevation parameter, must be 0-90"})
				return
			}
			req.MinElevation = f
		}
		if v := q.Get("max"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 50 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid max parameter, must be 1-50"})
				return
			}
			req.MaxPasses = n
		}

		el, ok := sess.Elements()
		if !ok {
			writeError(w, groundtrack.ErrNoElements)
			return
		}
		req.Start = sess.Now().Truncate(time.Second)

		found, err := pred.Predict(r.Context(), el, req)
		if err != nil {
			writeError(w, err)
			return
		}
		if found == nil {
			found = []passes.Pass{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"norad_id": el.NORADID,
			"start":    req.Start,
			"passes":   found,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, kvstore.ErrNotFound), errors.Is(err, tle.ErrElementsNotFound):
		code = http.StatusNotFound
	case errors.Is(err, groundtrack.ErrNoElements):
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
