package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/trafficbandit/allocator/internal/apperr"
)

const defaultHistoryLimit = 20

// handleGetAllocation computes (and persists) the current traffic split
// for an experiment. window_days=0 or absent means "use the configured
// default," per spec.md §4.3.
func (s *Server) handleGetAllocation(c *gin.Context) {
	experimentID := c.Param("id")

	windowDays := 0
	if raw := c.Query("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(c, "allocation", apperr.Field("window_days", "must be a non-negative integer"))
			return
		}
		windowDays = parsed
	}

	response, err := s.orchestrator.Allocate(c.Request.Context(), experimentID, windowDays)
	if err != nil {
		writeError(c, "allocation", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// handleGetHistory returns prior allocation computations for an
// experiment, newest first.
func (s *Server) handleGetHistory(c *gin.Context) {
	experimentID := c.Param("id")

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(c, "history", apperr.Field("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	history, err := s.store.GetHistory(c.Request.Context(), experimentID, limit)
	if err != nil {
		writeError(c, "history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}
