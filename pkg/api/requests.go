package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// researchRequest is the streaming endpoint's input, accepted either as a
// POST JSON body or GET query parameters.
type researchRequest struct {
	Query         string `json:"query" form:"query"`
	SessionID     string `json:"session_id" form:"session_id"`
	MaxIterations int    `json:"max_iterations" form:"max_iterations"`
	Resume        bool   `json:"resume" form:"resume"`
}

// bindResearchRequest reads the request body for POST, or query
// parameters for GET, and fills in defaults (a fresh session_id, the
// configured default max_iterations).
func (s *Server) bindResearchRequest(c *gin.Context) (researchRequest, error) {
	var req researchRequest
	if c.Request.Method == "POST" {
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				return req, err
			}
		}
	} else {
		req.Query = c.Query("query")
		req.SessionID = c.Query("session_id")
		if v := c.Query("max_iterations"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				req.MaxIterations = n
			}
		}
		req.Resume = c.Query("resume") == "true"
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.MaxIterations <= 0 {
		req.MaxIterations = s.cfg.Research.DefaultMaxIterations
	}
	return req, nil
}
