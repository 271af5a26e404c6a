package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")
	require.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	require.Zero(t, buf.Len())

	logger = New(&buf, "nonsense", "json")
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "GET", line["method"])
	require.Equal(t, "/login", line["path"])
	require.EqualValues(t, http.StatusTeapot, line["status"])
}
