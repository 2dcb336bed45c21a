package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggate/loggate/internal/core"
	"github.com/loggate/loggate/internal/core/engine"
	"github.com/loggate/loggate/internal/core/quota"
	"github.com/loggate/loggate/internal/gateway"
)

type recordingRemote struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingRemote) IsEnabled() bool { return true }

func (r *recordingRemote) Capture(ctx context.Context, message string, severity core.Severity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func newQuotaHandlers(t *testing.T, limit int) (*QuotaHandlers, *recordingRemote) {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	remote := &recordingRemote{}
	gw, err := gateway.New(context.Background(), gateway.Options{
		Remote: remote,
		Store: &quota.Store{
			Backend:  &quota.MemoryBackend{},
			Name:     "api",
			Defaults: quota.Defaults{Limit: limit, WindowUnit: core.WindowDay, RemoteEnabled: true},
		},
		Policy: &engine.WindowPolicy{Clock: func() time.Time { return now }},
	})
	require.NoError(t, err)
	return &QuotaHandlers{Gateway: gw, Name: gw.Name()}, remote
}

func postJSON(handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload)))
	return rec
}

func TestPostLogEscalatesErrors(t *testing.T) {
	h, remote := newQuotaHandlers(t, 2)

	rec := postJSON(h.PostLog, "/v1/logs", LogRequest{Severity: "error", Message: "disk failed"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp LogResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, core.SeverityError, resp.Severity)
	assert.Equal(t, gateway.Escalated, resp.Escalation)
	assert.Equal(t, 1, resp.Quota.EventCount)
	assert.Equal(t, 1, resp.Quota.Remaining)
	assert.Equal(t, "api", resp.Quota.Name)
	require.NotNil(t, resp.Quota.WindowEnd)
	assert.Equal(t, []string{"disk failed"}, remote.messages)
}

func TestPostLogSuppressesPastLimit(t *testing.T) {
	h, remote := newQuotaHandlers(t, 1)

	postJSON(h.PostLog, "/v1/logs", LogRequest{Severity: "error", Message: "first"})
	rec := postJSON(h.PostLog, "/v1/logs", LogRequest{Severity: "error", Message: "second"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp LogResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, gateway.Suppressed, resp.Escalation)
	assert.Equal(t, 0, resp.Quota.Remaining)
	assert.True(t, resp.Quota.ExceededNotified)
	assert.Equal(t, []string{"first", gateway.QuotaExceededNotice}, remote.messages)
}

func TestPostLogLeavesQuotaForWarnings(t *testing.T) {
	h, remote := newQuotaHandlers(t, 1)

	rec := postJSON(h.PostLog, "/v1/logs", LogRequest{Severity: "warn", Message: "slow"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp LogResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, gateway.LocalOnly, resp.Escalation)
	assert.Equal(t, 0, resp.Quota.EventCount)
	assert.Empty(t, remote.messages)
}

func TestPostLogRejectsBadInput(t *testing.T) {
	h, _ := newQuotaHandlers(t, 1)

	tests := []struct {
		name string
		body any
	}{
		{"unknown severity", LogRequest{Severity: "fatal", Message: "x"}},
		{"empty message", LogRequest{Severity: "error", Message: "  "}},
		{"unknown field", map[string]string{"severity": "error", "message": "x", "extra": "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(h.PostLog, "/v1/logs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.PostLog(rec, httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotaEndpoints(t *testing.T) {
	h, _ := newQuotaHandlers(t, 3)
	postJSON(h.PostLog, "/v1/logs", LogRequest{Severity: "error", Message: "one"})

	rec := httptest.NewRecorder()
	h.GetQuota(rec, httptest.NewRequest(http.MethodGet, "/v1/quota", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view quota.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, 1, view.EventCount)
	assert.Equal(t, 3, view.Limit)

	rec = httptest.NewRecorder()
	h.ResetQuota(rec, httptest.NewRequest(http.MethodPost, "/v1/quota/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, 0, view.EventCount)

	disabled := false
	rec = postJSON(h.SetRemote, "/v1/quota/remote", RemoteRequest{Enabled: &disabled})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.False(t, view.RemoteEnabled)

	rec = postJSON(h.SetRemote, "/v1/quota/remote", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
