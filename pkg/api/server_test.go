package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/deepresearch/pkg/cancel"
	"github.com/codeready-toolchain/deepresearch/pkg/checkpoint"
	"github.com/codeready-toolchain/deepresearch/pkg/config"
)

func testServer() *Server {
	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPPort: "0", GinMode: "test"},
		Research: config.ResearchConfig{DefaultMaxIterations: 3},
		LLM:      config.LLMConfig{Model: "test-model"},
		Sandbox:  config.SandboxConfig{MaxRetries: 2},
	}
	return NewServer(cfg, nil, checkpoint.NewMemoryStore(), cancel.New(), nil)
}

func TestHealthHandlerReportsConfigSnapshot(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 3, resp.Configuration.MaxIterations)
	assert.Equal(t, "test-model", resp.Configuration.LLMModel)
	assert.Equal(t, 2, resp.Configuration.SandboxRetries)
}

func TestCancelHandlerIsIdempotent(t *testing.T) {
	s := testServer()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/cancel/sess-1", nil)
		rec := httptest.NewRecorder()
		s.engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp CancelResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	}
}

func TestGetCheckpointHandlerReturnsFailureForUnknownSession(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/checkpoint/does-not-exist", nil)
	rec := httptest.NewRecorder()

	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CheckpointResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestDeleteCheckpointHandlerIsIdempotentOnMissingSession(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodDelete, "/checkpoint/does-not-exist", nil)
	rec := httptest.NewRecorder()

	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DeleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}
