package resp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/pkg/errs"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var body JSONResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestRespondSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondSuccess(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil), map[string]int{"activeConnections": 2})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Retry-After"))

	body := decodeBody(t, rec)
	assert.Equal(t, 0, body.Code)
	assert.Empty(t, body.Kind)
	assert.Equal(t, "success", body.Message)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        *errs.CustomError
		status     int
		kind       string
		retryAfter string
	}{
		{name: "rate limited", err: errs.NewError(errs.ErrRateLimitExceeded), status: http.StatusTooManyRequests, kind: "RateLimited", retryAfter: "1"},
		{name: "draining", err: errs.NewError(errs.ErrServerDraining), status: http.StatusServiceUnavailable, kind: "ServerDraining", retryAfter: "1"},
		{name: "bad request", err: errs.NewError(errs.ErrInvalidParams), status: http.StatusBadRequest, kind: "InvalidParams"},
		{name: "nil error", err: nil, status: http.StatusInternalServerError, kind: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, httptest.NewRequest(http.MethodGet, "/ws", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			assert.Equal(t, tt.kind, decodeBody(t, rec).Kind)
		})
	}
}
