package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusTeapot, "teapot", "short and stout")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "teapot", resp.Error)
	assert.Equal(t, "short and stout", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestCommonWriters(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w http.ResponseWriter)
		wantCode int
		wantErr  string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "m") }, http.StatusBadRequest, "bad_request"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "m") }, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "m") }, http.StatusForbidden, "forbidden"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "m") }, http.StatusNotFound, "not_found"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "m") }, http.StatusConflict, "conflict"},
		{"too many requests", func(w http.ResponseWriter) { WriteTooManyRequests(w, "m") }, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "m") }, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Error)
		})
	}
}

func TestWriteLockedOut(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteLockedOut(rec, "MAX_ATTEMPTS_EXCEEDED", 90*time.Second)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "account_locked", resp.Error)
	assert.Equal(t, "MAX_ATTEMPTS_EXCEEDED", resp.Details)
}

func TestWriteLockedOut_MinimumRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteLockedOut(rec, "LOCKED", 0)

	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
