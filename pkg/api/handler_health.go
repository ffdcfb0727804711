package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/deepresearch/pkg/version"
)

// healthHandler handles GET /healthz: liveness plus a snapshot of the
// resolved configuration.
func (s *Server) healthHandler(c *gin.Context) {
	stats := s.cfg.Stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Full(),
		Configuration: ConfigStats{
			MaxIterations:  stats.MaxIterations,
			LLMModel:       stats.LLMModel,
			SandboxRetries: stats.SandboxRetries,
		},
	})
}
