package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/linktrim/linktrim/resolver"
	"github.com/linktrim/linktrim/rewrite"
	"github.com/linktrim/linktrim/stats"
)

// maxRewriteTextLen matches Telegram's message size cap; the bot never sees
// longer text, so the dry-run endpoint doesn't either.
const maxRewriteTextLen = 4096

// RewriteRequest represents a request to dry-run the rewrite pipeline.
type RewriteRequest struct {
	Text string `json:"text"`
}

// RewriteResponse represents the result of a dry-run rewrite.
type RewriteResponse struct {
	Text    string `json:"text"`
	Changed bool   `json:"changed"`
}

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// Handler contains the HTTP handlers for the admin API.
type Handler struct {
	pipeline *rewrite.Pipeline
	store    stats.Store
	logger   *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(pipeline *rewrite.Pipeline, store stats.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		pipeline: pipeline,
		store:    store,
		logger:   log,
	}
}

// HandleRewrite handles POST /v1/rewrite requests. It runs the pipeline on
// the submitted text and reports the result without touching any chat.
func (h *Handler) HandleRewrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode rewrite request", "error", err)
		h.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Text == "" {
		h.sendError(w, "text is required", http.StatusBadRequest)
		return
	}
	if len(req.Text) > maxRewriteTextLen {
		h.sendError(w, "text exceeds maximum length", http.StatusBadRequest)
		return
	}

	rewritten, err := h.pipeline.ReplaceAll(ctx, req.Text)
	if err != nil {
		h.logger.Error("rewrite failed", "error", err)

		var netErr *resolver.NetworkError
		if errors.As(err, &netErr) {
			h.sendError(w, err.Error(), http.StatusBadGateway)
			return
		}
		h.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, RewriteResponse{
		Text:    rewritten,
		Changed: rewritten != req.Text,
	}, http.StatusOK)
}

// HandleStats handles GET /v1/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to read stats", "error", err)
		h.sendError(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	h.sendJSON(w, snap, http.StatusOK)
}

// HandleHealth handles GET /health requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	h.sendJSON(w, health, http.StatusOK)
}

// sendJSON sends a JSON response.
func (h *Handler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// sendError sends an error response.
func (h *Handler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, ErrorResponse{
		Error:      message,
		StatusCode: statusCode,
	}, statusCode)
}
