// Package stream pushes key-value state changes to browsers over
// Server-Sent Events. Clients connect via GET /api/v1/stream/state.
//
// The first message on every connection carries the full stored state:
//
//	data: {"type":"state","fields":{"lat":-12.3,...}}\n\n
//
// Each later message carries the fields one operation wrote:
//
//	data: {"type":"update","operation":"refresh_snapshot","replaced":false,"fields":{...}}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval of silence.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/httputil"
	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/metrics"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // default 10
	KeepaliveInterval  time.Duration // default 30s
	TrustProxy         bool
}

// Publisher is the source of state updates.
type Publisher interface {
	Subscribe(buf int) (<-chan groundtrack.Update, func())
}

// Handler manages SSE streaming connections.
type Handler struct {
	pub     Publisher
	store   kvstore.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new streaming handler.
func NewHandler(pub Publisher, store kvstore.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		pub:     pub,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Close ends every open stream and refuses new ones. Register it with
// http.Server.RegisterOnShutdown so Shutdown does not wait on streams.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// HandleState serves the SSE state stream.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "server shutting down"})
		return
	default:
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	// Subscribe before reading the store so no write falls between the two.
	updates, unsubscribe := h.pub.Subscribe(16)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's read and write timeouts for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}
	if err := rc.SetReadDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear read deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	ctx := r.Context()
	state, err := h.stateMessage(ctx)
	if err != nil {
		metrics.IncStreamErrors("store_error")
		h.logger.Warn("stream state read failed", "remote_ip", ip, "error", err)
		return
	}
	if err := c.sendJSON(state); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (state)", "remote_ip", ip, "error", err)
		return
	}

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-h.done:
			return

		case u := <-updates:
			msg, err := buildUpdateMessage(u)
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			if err := c.sendJSON(msg); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// stateMessage reads every stored key.
func (h *Handler) stateMessage(ctx context.Context) (stateMessage, error) {
	keys, err := h.store.Keys(ctx)
	if err != nil {
		return stateMessage{}, err
	}
	fields := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		v, err := h.store.Get(ctx, k)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return stateMessage{}, err
		}
		fields[k] = v
	}
	return stateMessage{Type: "state", Fields: fields}, nil
}

func buildUpdateMessage(u groundtrack.Update) (updateMessage, error) {
	fields := make(map[string]json.RawMessage, len(u.Fields))
	for _, f := range u.Fields {
		v, err := json.Marshal(f.Value)
		if err != nil {
			return updateMessage{}, fmt.Errorf("encoding %q: %w", f.Key, err)
		}
		fields[f.Key] = v
	}
	return updateMessage{
		Type:      "update",
		Operation: u.Operation,
		Replaced:  u.Replaced,
		Fields:    fields,
	}, nil
}

type stateMessage struct {
	Type   string                     `json:"type"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type updateMessage struct {
	Type      string                     `json:"type"`
	Operation string                     `json:"operation"`
	Replaced  bool                       `json:"replaced"`
	Fields    map[string]json.RawMessage `json:"fields"`
}
