package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/ports"
	"github.com/kirillkom/academic-rag/internal/observability/metrics"
)

const defaultMaxQueryLength = 1000

type Router struct {
	service        ports.QueryService
	metrics        *metrics.HTTPServerMetrics
	serviceName    string
	maxQueryLength int
	logger         *slog.Logger
}

func NewRouter(service ports.QueryService, m *metrics.HTTPServerMetrics, serviceName string, maxQueryLength int, logger *slog.Logger) *Router {
	if maxQueryLength <= 0 {
		maxQueryLength = defaultMaxQueryLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		service:        service,
		metrics:        m,
		serviceName:    serviceName,
		maxQueryLength: maxQueryLength,
		logger:         logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", rt.health)
	mux.HandleFunc("/api/query", rt.query)
	mux.HandleFunc("/api/stats", rt.stats)
	mux.HandleFunc("/api/catalog", rt.catalog)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = accessLogMiddleware(rt.logger, mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.serviceName, handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if len(query) > rt.maxQueryLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query too long"})
		return
	}

	resp := rt.service.ProcessQuery(r.Context(), query)
	rt.recordQuery(resp)
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.service.Stats())
}

func (rt *Router) catalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":         rt.service.CatalogStats(),
		"sample_codes":  rt.service.SampleCodes(10),
		"sample_titles": rt.service.SampleTitles(10),
	})
}

func (rt *Router) recordQuery(resp domain.Response) {
	if rt.metrics == nil {
		return
	}
	status := "success"
	if resp.GenerationMode == domain.ModeError {
		status = "error"
	}
	docCount := 0
	if n, ok := resp.Metadata["document_count"].(int); ok {
		docCount = n
	}
	rt.metrics.RecordQuery(
		rt.serviceName,
		status,
		string(resp.GenerationMode),
		docCount,
		resp.Confidence,
		time.Duration(resp.ProcessingTime*float64(time.Second)),
	)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
