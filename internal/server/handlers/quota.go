package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/loggate/loggate/internal/core"
	"github.com/loggate/loggate/internal/core/quota"
	apperrors "github.com/loggate/loggate/internal/errors"
	"github.com/loggate/loggate/internal/gateway"
)

// maxLogBody bounds POST /v1/logs payloads.
const maxLogBody = 64 << 10

// Gateway is the part of gateway.Gateway the HTTP surface drives.
type Gateway interface {
	Write(ctx context.Context, severity core.Severity, message string) gateway.Escalation
	Snapshot() core.QuotaState
	Refresh(ctx context.Context) core.QuotaState
	Reset(ctx context.Context) error
	SetRemoteEnabled(ctx context.Context, enabled bool) error
}

// LogRequest is the body of POST /v1/logs.
type LogRequest struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// LogResponse reports what the gateway did with an event.
type LogResponse struct {
	Severity   core.Severity      `json:"severity"`
	Escalation gateway.Escalation `json:"escalation"`
	Quota      quota.View         `json:"quota"`
}

// RemoteRequest is the body of PUT /v1/quota/remote.
type RemoteRequest struct {
	Enabled *bool `json:"enabled"`
}

// QuotaHandlers serves the gateway endpoints.
type QuotaHandlers struct {
	Gateway Gateway
	Name    string
}

// PostLog accepts one event and runs it through the gateway.
func (h *QuotaHandlers) PostLog(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxLogBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be a JSON log event"))
		return
	}

	severity, err := core.ParseSeverity(req.Severity)
	if err != nil {
		respondWithError(w, r, apperrors.FromGateway(r.Context(), err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("message is required"))
		return
	}

	escalation := h.Gateway.Write(r.Context(), severity, req.Message)
	writeJSON(w, http.StatusAccepted, LogResponse{
		Severity:   severity,
		Escalation: escalation,
		Quota:      quota.NewView(h.Name, h.Gateway.Snapshot()),
	})
}

// GetQuota returns the stored quota record.
func (h *QuotaHandlers) GetQuota(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, quota.NewView(h.Name, h.Gateway.Refresh(r.Context())))
}

// ResetQuota starts a fresh window.
func (h *QuotaHandlers) ResetQuota(w http.ResponseWriter, r *http.Request) {
	if err := h.Gateway.Reset(r.Context()); err != nil {
		respondWithError(w, r, apperrors.FromGateway(r.Context(), err))
		return
	}
	writeJSON(w, http.StatusOK, quota.NewView(h.Name, h.Gateway.Snapshot()))
}

// SetRemote flips the escalation master switch.
func (h *QuotaHandlers) SetRemote(w http.ResponseWriter, r *http.Request) {
	var req RemoteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLogBody)).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be JSON"))
		return
	}
	if req.Enabled == nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("enabled is required"))
		return
	}
	if err := h.Gateway.SetRemoteEnabled(r.Context(), *req.Enabled); err != nil {
		respondWithError(w, r, apperrors.FromGateway(r.Context(), err))
		return
	}
	writeJSON(w, http.StatusOK, quota.NewView(h.Name, h.Gateway.Snapshot()))
}
