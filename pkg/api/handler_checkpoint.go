package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// cancelHandler handles POST /cancel/:sessionID: sets the cancellation
// flag the orchestrator polls. Idempotent: cancelling twice is a no-op.
func (s *Server) cancelHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	s.cancelSig.RequestCancel(sessionID)
	c.JSON(http.StatusOK, CancelResponse{Success: true})
}

// getCheckpointHandler handles GET /checkpoint/:sessionID. GetInfo
// returns (nil, nil) for a session with no checkpoint, which must still
// surface as {success:false}, never {success:true, info:null}.
func (s *Server) getCheckpointHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	info, err := s.checkpoints.GetInfo(sessionID)
	if err != nil || info == nil {
		c.JSON(http.StatusOK, CheckpointResponse{Success: false})
		return
	}
	c.JSON(http.StatusOK, CheckpointResponse{Success: true, Info: info})
}

// listCheckpointsHandler handles GET /checkpoints?status=&limit=.
func (s *Server) listCheckpointsHandler(c *gin.Context) {
	status := c.Query("status")
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	infos, err := s.checkpoints.List("", status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, CheckpointListResponse{Success: true, Checkpoints: infos})
}

// deleteCheckpointHandler handles DELETE /checkpoint/:sessionID. Deleting
// a non-existent checkpoint returns {success:false}, not an error, so the
// call stays idempotent under retries.
func (s *Server) deleteCheckpointHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	existed, err := s.checkpoints.Delete(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Success: existed})
}
