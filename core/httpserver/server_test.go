package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/neuroquiz/core/config"
	"github.com/m3rciful/neuroquiz/core/logger"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	return New(coreconfig.HTTPConfig{Listen: "127.0.0.1", Port: 0})
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer()
	var seen string
	s.Engine.GET("/rid", func(c *gin.Context) {
		seen = logger.RIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	const inbound = "0b8f3c2e-7a41-4d3a-9d55-2f1c9e8b7a60"
	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set(HeaderRequestID, inbound)
	rec := httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, req)

	assert.Equal(t, inbound, seen)
	assert.Equal(t, inbound, rec.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set(HeaderRequestID, "not a uuid")
	rec = httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a uuid", seen)
	assert.Len(t, seen, 36)
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	s := newTestServer()
	s.Engine.GET("/panic", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	s.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "internal", env.Error.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
}
