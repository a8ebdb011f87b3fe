// Package server is the delivery layer: a thin HTTP surface over the
// pipeline's cache and broadcaster. It holds no state of its own beyond
// uptime bookkeeping; every document it serves comes from the cache and
// every event it relays comes from the hub.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"missionctl/internal/pipeline"
)

const (
	shutdownGrace = 5 * time.Second
	ssePingEvery  = 30 * time.Second
)

// Server serves the dashboard API for one workspace pipeline.
type Server struct {
	pipe    *pipeline.Pipeline
	logger  *zap.Logger
	started time.Time

	httpServer *http.Server
}

// New creates a Server listening on addr.
func New(addr string, pipe *pipeline.Pipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{pipe: pipe, logger: logger, started: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/data", s.handleData)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/rebuild", s.handleRebuild)
	mux.HandleFunc("/api/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     withCORS(mux),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /api/events streams indefinitely.
	}
	return s
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// handleData returns the cached document without triggering a build.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	doc, version := s.pipe.Document()
	if doc == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no data available"})
		return
	}
	w.Header().Set("X-Data-Version", fmt.Sprintf("%d", version))
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	_, version := s.pipe.Document()
	resp := map[string]any{
		"status":        "ok",
		"version":       version,
		"uptimeSeconds": int64(time.Since(s.started).Seconds()),
		"subscribers":   s.pipe.Hub().Count(),
	}
	if last := s.pipe.Store().LastBuild(); !last.IsZero() {
		resp["lastModified"] = last.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRebuild runs a synchronous build through the shared pipeline, so it
// can never overlap a watcher-triggered build.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	version, err := s.pipe.Rebuild(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "version": version})
}

// handleEvents relays broadcaster events over Server-Sent Events. The hub
// drops this subscription if the client stops reading, which unblocks nobody
// else; the handler then just returns.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	sub := s.pipe.Hub().Subscribe()
	defer s.pipe.Hub().Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Greet with the current version so late joiners know where they stand.
	_, version := s.pipe.Document()
	writeSSE(w, map[string]any{"type": "connected", "version": version})
	flusher.Flush()

	ping := time.NewTicker(ssePingEvery)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-sub.C:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	return false
}

// withCORS mirrors the permissive policy of the dashboard's dev setup: the
// UI may be served from a different origin than the data layer.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
