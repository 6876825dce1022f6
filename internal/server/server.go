// Package server exposes the detection facades over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hakim/netdiag/internal/latency"
	"github.com/hakim/netdiag/internal/logging"
	"github.com/hakim/netdiag/internal/models"
	"github.com/hakim/netdiag/internal/pipeline"
)

// Service is the detection backend. *detect.Engine satisfies it.
type Service interface {
	pipeline.Detector
	IPInfo(ctx context.Context, ip string) models.IPInfo
}

// Store persists and lists detections. *storage.Store satisfies it.
type Store interface {
	pipeline.StoreInterface
	ListDetections(subject string, category models.Category) ([]*models.DetectionRecord, error)
}

// Config wires a Server
type Config struct {
	ListenAddr string
	Service    Service
	Store      Store
	Scope      *pipeline.ScopeConfig
	Latency    latency.Options
	Logger     *slog.Logger

	// AllowedOrigins are echoed back in CORS responses. Empty grants no
	// cross-origin access; "*" grants any.
	AllowedOrigins []string
}

// MaxTCPingPorts bounds the ports a single tcping request may dial
const MaxTCPingPorts = 1024

// Server is the HTTP API surface for netdiag.
type Server struct {
	cfg    Config
	router chi.Router
	logger *slog.Logger
}

// NewServer creates a Server and registers its routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("server: service is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: logging.OrDefault(cfg.Logger).With("component", "server"),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ip", s.handleIPInfo)

	// Detection
	r.Get("/api/detect/all", s.handleDetectAll)
	r.Get("/api/detect/{category}", s.handleDetect)

	// Latency approximations
	r.Get("/api/ping", s.handlePing)
	r.Get("/api/tcping", s.handleTCPing)

	// History
	r.Get("/api/history/{ip}", s.handleHistory)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	attrs := []any{"method", r.Method, "path", r.URL.Path}
	if q := r.URL.RawQuery; q != "" {
		attrs = append(attrs, "query", q)
	}
	s.logger.Info("http_request", attrs...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Detection and ping can legitimately take tens of seconds
		WriteTimeout: 2 * time.Minute,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- HTTP handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIPInfo(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if !s.checkSubject(w, ip) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Service.IPInfo(r.Context(), ip))
}

// Detection

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	category, ok := models.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if !s.checkSubject(w, ip) {
		return
	}

	result, err := s.cfg.Service.Detect(r.Context(), category, ip)
	if err != nil {
		s.logger.Warn("detecting", "category", category, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.cfg.Store.SaveDetection(models.NewDetectionRecord("", result)); err != nil {
		s.logger.Warn("persisting detection", "category", category, "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

// sessionResponse is the body of /api/detect/all
type sessionResponse struct {
	Subject        string                    `json:"subject"`
	SessionID      string                    `json:"session_id"`
	Status         string                    `json:"status"`
	ElapsedSeconds float64                   `json:"elapsed_seconds"`
	Results        []*models.DetectionResult `json:"results"`
	Errors         map[string]string         `json:"errors,omitempty"`
}

func (s *Server) handleDetectAll(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if !s.checkSubject(w, ip) {
		return
	}

	res, err := pipeline.RunSession(r.Context(), pipeline.SessionConfig{
		Subject: ip,
		Scope:   s.cfg.Scope,
		Logger:  s.logger,
	}, s.cfg.Service, s.cfg.Store)
	if err != nil {
		s.logger.Warn("running session", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := res.Results
	if results == nil {
		results = []*models.DetectionResult{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Subject:        res.Subject,
		SessionID:      res.SessionID,
		Status:         res.Status,
		ElapsedSeconds: res.Elapsed.Seconds(),
		Results:        results,
		Errors:         res.Errors,
	})
}

// Latency

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}

	opts := s.cfg.Latency
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "count must be between 1 and 100")
			return
		}
		opts.Count = n
	}
	if !s.checkHost(w, r, host) {
		return
	}

	res, err := latency.Ping(r.Context(), host, opts)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTCPing(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}

	var ports []int
	if raw := r.URL.Query().Get("ports"); raw != "" {
		var err error
		if ports, err = latency.ParsePorts(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(ports) > MaxTCPingPorts {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d ports per request", MaxTCPingPorts))
			return
		}
	}
	if !s.checkHost(w, r, host) {
		return
	}

	res, err := latency.TCPing(r.Context(), host, ports, s.cfg.Latency)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "ip")

	var category models.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		c, ok := models.ParseCategory(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		category = c
	}

	records, err := s.cfg.Store.ListDetections(subject, category)
	if err != nil {
		s.logger.Warn("listing detections", "subject", subject, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.DetectionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// checkSubject enforces scope on an explicit subject. It writes the error
// response and returns false when the subject is rejected.
// checkHost rejects latency targets outside the configured scope
func (s *Server) checkHost(w http.ResponseWriter, r *http.Request, host string) bool {
	if err := s.cfg.Scope.ValidateHost(r.Context(), host); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return false
	}
	return true
}

func (s *Server) checkSubject(w http.ResponseWriter, ip string) bool {
	if ip == "" {
		return true
	}
	if net.ParseIP(ip) == nil {
		writeError(w, http.StatusBadRequest, "invalid ip address")
		return false
	}
	if err := s.cfg.Scope.ValidateIP(ip); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return false
	}
	return true
}
