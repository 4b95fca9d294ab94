// Package admin provides a lightweight HTTP API for runtime inspection
// and control of the running cache server.
//
// Endpoints:
//
//	GET  /status    - server health, configured policy, current size/capacity
//	GET  /metrics   - JSON snapshot of server and cache engine counters
//	POST /capacity  - adjust the live capacity bound {"capacity":N}, persisted to disk
package admin

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/cachewire/cachewire/internal/config"
	"github.com/cachewire/cachewire/internal/logger"
	"github.com/cachewire/cachewire/internal/metrics"
)

// Engine is the subset of *cache.Engine the admin API needs to report on
// and adjust.
type Engine interface {
	Capacity() int
	SetCapacity(capacity int) error
	Size() int
}

// Server is the admin HTTP API server.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	engine    Engine
	token     string           // bearer token for auth; empty = no auth
	metrics   *metrics.Metrics // nil = no server-level metrics
	log       *logger.Logger
}

// New creates an admin server bound to engine and cfg. If cfg.AdminToken is
// non-empty, every endpoint requires a matching Bearer token.
func New(cfg *config.Config, engine Engine, m *metrics.Metrics) *Server {
	log := logger.New("ADMIN", cfg.LogLevel)
	if m != nil {
		log = log.WithCounters(logger.Counters{Warnings: &m.LogWarnings, Errors: &m.LogErrors})
	}
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		engine:    engine,
		token:     cfg.AdminToken,
		metrics:   m,
		log:       log,
	}
	if s.token != "" {
		s.log.Info("auth", logger.F("enabled", true))
	}
	return s
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/capacity", s.handleCapacity)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warn("auth", logger.F("remote", r.RemoteAddr), logger.F("path", r.URL.Path))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Uptime   string `json:"uptime"`
		Port     int    `json:"port"`
		Policy   string `json:"policy"`
		Capacity int    `json:"capacity"`
		Size     int    `json:"size"`
	}

	s.writeJSON(w, http.StatusOK, response{
		Status:   "running",
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		Port:     s.cfg.Port,
		Policy:   s.cfg.Policy,
		Capacity: s.engine.Capacity(),
		Size:     s.engine.Size(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// capacityOverride is the persisted form of a runtime capacity adjustment.
type capacityOverride struct {
	Capacity int `json:"capacity"`
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1024)
	var req capacityOverride
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Capacity <= 0 {
		http.Error(w, `invalid request: need {"capacity":N} with N > 0`, http.StatusBadRequest)
		return
	}

	if err := s.engine.SetCapacity(req.Capacity); err != nil {
		http.Error(w, fmt.Sprintf("capacity change rejected: %v", err), http.StatusConflict)
		return
	}

	if s.cfg.CapacityFile != "" {
		if err := persistCapacity(s.cfg.CapacityFile, req.Capacity); err != nil {
			s.log.Warn("capacity", logger.F("err", err))
		}
	}

	s.log.Info("capacity", logger.F("bytes", req.Capacity))
	s.writeJSON(w, http.StatusOK, capacityOverride{Capacity: req.Capacity})
}

// persistCapacity writes the override atomically (temp file + rename via
// natefinch/atomic) so a crash mid-write never leaves a truncated file for
// the next startup to read.
func persistCapacity(path string, capacity int) error {
	data, err := json.MarshalIndent(capacityOverride{Capacity: capacity}, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(append(data, '\n')))
}

// LoadPersistedCapacity reads a previously persisted capacity override, if
// the file exists. Callers use this at startup to restore a runtime
// adjustment made before the last restart.
func LoadPersistedCapacity(path string) (int, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a controlled config file path, not user input
	if err != nil {
		return 0, false
	}
	var o capacityOverride
	if err := json.Unmarshal(data, &o); err != nil || o.Capacity <= 0 {
		return 0, false
	}
	return o.Capacity, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode", logger.F("err", err))
	}
}

// ListenAndServe starts the admin HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.AdminPort)
	s.log.Info("listen", logger.F("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
