// Package handlers provides HTTP request handlers for the extraction API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumenstream/extractor/internal/browser"
	"github.com/lumenstream/extractor/internal/config"
	"github.com/lumenstream/extractor/internal/extraction"
	"github.com/lumenstream/extractor/internal/security"
	"github.com/lumenstream/extractor/internal/stats"
	"github.com/lumenstream/extractor/internal/types"
	"github.com/lumenstream/extractor/pkg/version"
)

// maxRequestBodyBytes bounds the size of a POST /extract body.
const maxRequestBodyBytes = 64 * 1024

// Handler serves the extraction HTTP API: POST /extract and GET /health.
type Handler struct {
	pool        *browser.Pool
	pipeline    *extraction.Pipeline
	config      *config.Config
	domainStats *stats.Manager
	startedAt   time.Time
}

// New builds a Handler bound to pool, pipeline, and cfg.
func New(pool *browser.Pool, pipeline *extraction.Pipeline, cfg *config.Config) *Handler {
	return &Handler{
		pool:        pool,
		pipeline:    pipeline,
		config:      cfg,
		domainStats: stats.NewManager(),
		startedAt:   time.Now(),
	}
}

// Close releases resources the handler owns (the domain stats cleanup goroutine).
func (h *Handler) Close() {
	h.domainStats.Close()
}

// DomainStats exposes the per-host outcome tracker for diagnostics.
func (h *Handler) DomainStats() *stats.Manager {
	return h.domainStats
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		if r.Method != http.MethodGet {
			h.writeErrorWithStatus(w, http.StatusMethodNotAllowed, "method not allowed", time.Now())
			return
		}
		h.handleHealth(w)
	case "/extract":
		if r.Method != http.MethodPost {
			h.writeErrorWithStatus(w, http.StatusMethodNotAllowed, "method not allowed", time.Now())
			return
		}
		h.handleExtract(w, r)
	default:
		h.writeErrorWithStatus(w, http.StatusNotFound, "not found", time.Now())
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter) {
	status := h.pool.Status()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	breaker := "closed"
	if status.CircuitOpen {
		breaker = "open"
	}

	resp := types.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UnixMilli(),
		Memory: types.HealthMemory{
			AllocBytes: mem.Alloc,
			SysBytes:   mem.Sys,
		},
		Queue: types.HealthQueue{
			Pending: status.Pending,
			Active:  status.Active,
		},
		Browser: types.HealthBrowser{
			CircuitBreaker: breaker,
		},
	}

	statusCode := http.StatusOK
	if status.CircuitOpen {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, resp)
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	buf := getBuffer()
	defer putBuffer(buf)

	if _, err := io.Copy(buf, io.LimitReader(r.Body, maxRequestBodyBytes+1)); err != nil {
		h.writeErrorWithStatus(w, http.StatusBadRequest, "failed to read request body", startTime)
		return
	}
	if buf.Len() > maxRequestBodyBytes {
		h.writeErrorWithStatus(w, http.StatusBadRequest, "request body too large", startTime)
		return
	}

	var req types.ExtractRequest
	if err := json.Unmarshal(buf.Bytes(), &req); err != nil {
		h.writeErrorWithStatus(w, http.StatusBadRequest, "invalid JSON request", startTime)
		return
	}

	if req.EmbedURL == "" {
		h.writeErrorWithStatus(w, http.StatusBadRequest, "embedUrl is required", startTime)
		return
	}

	if err := security.ValidateURLWithContext(r.Context(), req.EmbedURL); err != nil {
		h.writeErrorWithStatus(w, http.StatusBadRequest, "embedUrl failed validation: "+err.Error(), startTime)
		return
	}

	timeoutMs := req.Timeout
	if timeoutMs <= 0 {
		timeoutMs = types.DefaultTimeoutMs
	}

	priority := req.Priority
	if priority != types.PriorityHigh {
		priority = types.PriorityNormal
	}

	domain := stats.ExtractDomain(req.EmbedURL)

	log.Debug().Str("embed_url", security.RedactURL(req.EmbedURL)).Int("timeout_ms", timeoutMs).Msg("starting extraction")

	resp, err := h.pipeline.Extract(r.Context(), req.EmbedURL, timeoutMs, priority)
	latencyMs := time.Since(startTime).Milliseconds()

	if err != nil {
		h.domainStats.RecordRequest(domain, latencyMs, false, false)
		h.writeExtractionError(w, err, startTime)
		return
	}

	h.domainStats.RecordRequest(domain, latencyMs, resp.Success, false)
	h.writeJSON(w, http.StatusOK, resp)
}

// writeExtractionError maps a pool-rejection error to its HTTP status. Only
// circuit-open, browser-launch, and context-cancellation failures reach
// here; timeout and manifest-not-found are success:false ExtractResponse
// values, not errors.
func (h *Handler) writeExtractionError(w http.ResponseWriter, err error, startTime time.Time) {
	if extErr, ok := err.(*types.ExtractionError); ok {
		switch extErr.Category {
		case "validation":
			h.writeErrorWithStatus(w, http.StatusBadRequest, extErr.Message, startTime)
		default:
			h.writeErrorWithStatus(w, http.StatusServiceUnavailable, extErr.Message, startTime)
		}
		return
	}
	h.writeErrorWithStatus(w, http.StatusServiceUnavailable, "extraction could not be scheduled", startTime)
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *Handler) writeErrorWithStatus(w http.ResponseWriter, statusCode int, message string, startTime time.Time) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := types.ErrorResponse{
		Status:         types.StatusError,
		Message:        message,
		StartTimestamp: startTime.UnixMilli(),
		EndTimestamp:   time.Now().UnixMilli(),
		Version:        version.Full(),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Str("message", message).Msg("failed to encode error response")
	}
}
