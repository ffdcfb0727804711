package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/deepresearch/pkg/events"
)

// researchHandler handles POST/GET /research: the streaming endpoint.
// Accepts {query, session_id?, max_iterations?, resume?} and responds
// with an SSE stream.
func (s *Server) researchHandler(c *gin.Context) {
	req, err := s.bindResearchRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Query == "" && !req.Resume {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	s.stream(c, req.SessionID, req.Query, req.MaxIterations, req.Resume)
}

// resumeHandler handles POST /resume/:sessionID: the same SSE stream,
// resumed from the last saved checkpoint.
func (s *Server) resumeHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	s.stream(c, sessionID, "", s.cfg.Research.DefaultMaxIterations, true)
}

// stream drives one orchestrator run and forwards its event channel to
// the client as SSE frames, terminating with [DONE]. On a request
// cancellation (client disconnect) the orchestrator's own cancellation
// signal is not touched: the run keeps going in the background so a
// reconnect via /resume can pick it back up.
func (s *Server) stream(c *gin.Context, sessionID, query string, maxIterations int, resume bool) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ch := s.orch.Run(context.WithoutCancel(c.Request.Context()), sessionID, "", query, maxIterations, resume)
	defer func() {
		go func() {
			for range ch {
			}
		}()
	}()

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-ch
		if !ok {
			_ = events.WriteDone(w)
			return false
		}
		if err := events.WriteSSE(w, ev); err != nil {
			s.log.Warn("failed writing SSE frame", "session_id", sessionID, "error", err)
			return false
		}
		return true
	})
}
