// Package api serves the household's shared copy of the records: a merge
// endpoint every device polls and pushes to.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sadopc/chorechart/internal/metrics"
	"github.com/sadopc/chorechart/internal/store"
)

// maxBodyBytes matches the largest payload a full-state push can reach.
const maxBodyBytes = 50 << 20

// Server is the merge endpoint backed by its own store.
type Server struct {
	store          *store.Store
	logger         *slog.Logger
	metricsEnabled bool
}

func NewServer(s *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, logger: logger}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("chorechart merge server is running. Data at /api/data\n"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/data", s.handleGetData)
		r.Post("/data", s.handlePostData)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Snapshot()
	if err != nil {
		s.logger.Error("read data", "error", err, "request_id", middleware.GetReqID(r.Context()))
		metrics.DataRequests.WithLabelValues(http.MethodGet, metrics.ResultFailed).Inc()
		writeError(w, http.StatusInternalServerError, "Failed to read data")
		return
	}
	metrics.DataRequests.WithLabelValues(http.MethodGet, metrics.ResultOK).Inc()
	writeJSON(w, http.StatusOK, data)
}

type mergeResponse struct {
	Success     bool     `json:"success"`
	KeysUpdated []string `json:"keysUpdated"`
}

// handlePostData merges the posted keys into storage; keys not posted are
// left alone.
func (s *Server) handlePostData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		metrics.DataRequests.WithLabelValues(http.MethodPost, metrics.ResultInvalid).Inc()
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[k] = recordValue(v)
	}
	if err := s.store.SetMany(values); err != nil {
		s.logger.Error("write data", "error", err, "request_id", middleware.GetReqID(r.Context()))
		metrics.DataRequests.WithLabelValues(http.MethodPost, metrics.ResultFailed).Inc()
		writeError(w, http.StatusInternalServerError, "Failed to save data")
		return
	}
	metrics.DataRequests.WithLabelValues(http.MethodPost, metrics.ResultOK).Inc()
	metrics.MergedKeys.Add(float64(len(values)))

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.logger.Info("updated keys", "keys", keys)
	writeJSON(w, http.StatusOK, mergeResponse{Success: true, KeysUpdated: keys})
}

// recordValue stores JSON strings as their contents and any other JSON
// value as its text.
func recordValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// corsMiddleware lets browser clients on other origins reach the endpoint.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
