package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusBadRequest, "MIGRATION_PARSE_FAILED", "bad input", map[string]string{"format": "json"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "MIGRATION_PARSE_FAILED", env.Code)
	require.Equal(t, "bad input", env.Message)
	require.Equal(t, "json", env.Meta["format"])
}

func TestWriteJSON_NilPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusNoContent, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Mode string `json:"mode"`
	}

	t.Run("ok", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mode":"dry_run"}`))
		var b body
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, 1024, &b))
		require.Equal(t, "dry_run", b.Mode)
	})

	t.Run("too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mode":"`+strings.Repeat("x", 64)+`"}`))
		var b body
		require.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, 16, &b), ErrBodyTooLarge)
	})

	t.Run("trailing data", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mode":"a"}{"mode":"b"}`))
		var b body
		require.Error(t, DecodeJSON(httptest.NewRecorder(), req, 1024, &b))
	})
}
