package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusOK, map[string]string{"message": "test"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK_WritesBodyWithoutEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteOK(w, map[string]int{"total": 3}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":3}`, w.Body.String())
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteMessage(w, "Logged out successfully"))
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, w.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name        string
		write       func(w http.ResponseWriter) error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{"bad request", func(w http.ResponseWriter) error { return WriteBadRequest(w, "Invalid body", nil) }, 400, "bad_request", "Invalid body"},
		{"unauthorized default", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") }, 401, "unauthorized", "Authentication required"},
		{"forbidden default", func(w http.ResponseWriter) error { return WriteForbidden(w, "") }, 403, "forbidden", "Access forbidden"},
		{"not found", func(w http.ResponseWriter) error { return WriteNotFound(w, "Post not found") }, 404, "not_found", "Post not found"},
		{"conflict", func(w http.ResponseWriter) error { return WriteConflict(w, "exists", nil) }, 409, "conflict", "exists"},
		{"too many requests", func(w http.ResponseWriter) error { return WriteTooManyRequests(w, "", nil) }, 429, "rate_limit_exceeded", "Too many requests, please try again later"},
		{"internal default", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, 500, "internal_error", "Internal server error"},
		{"bad gateway", func(w http.ResponseWriter) error { return WriteBadGateway(w, "Failed to generate posts") }, 502, "bad_gateway", "Failed to generate posts"},
		{"gateway timeout", func(w http.ResponseWriter) error { return WriteGatewayTimeout(w, "") }, 504, "gateway_timeout", "Upstream request timed out"},
		{"service unavailable", func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "") }, 503, "service_unavailable", "Service unavailable"},
		{"unknown status", func(w http.ResponseWriter) error { return WriteError(w, http.StatusTeapot, "teapot", nil) }, 418, "internal_error", "teapot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestWriteBadRequest_Details(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteBadRequest(w, "Validation failed", map[string]interface{}{
		"fields": map[string]string{"url": "url is required"},
	}))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	fields := resp.Details["fields"].(map[string]interface{})
	assert.Equal(t, "url is required", fields["url"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		URL string `json:"url"`
	}

	t.Run("valid body", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://go.dev"}`))
		require.NoError(t, DecodeJSON(req, &p))
		assert.Equal(t, "https://go.dev", p.URL)
	})

	t.Run("empty body", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		assert.ErrorContains(t, DecodeJSON(req, &p), "empty")
	})

	t.Run("malformed body", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":`))
		assert.ErrorContains(t, DecodeJSON(req, &p), "invalid JSON")
	})

	t.Run("oversized body", func(t *testing.T) {
		var p payload
		big := `{"url":"` + strings.Repeat("a", maxRequestBody) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
		assert.ErrorContains(t, DecodeJSON(req, &p), "too large")
	})
}
