package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// setupRoutes registers every route from spec.md §6.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	experiments := s.router.Group("/experiments")
	{
		experiments.POST("", s.handleCreateExperiment)
		experiments.GET("/:id", s.handleGetExperiment)
		experiments.POST("/:id/metrics", s.handleRecordMetrics)
		experiments.GET("/:id/allocation", s.handleGetAllocation)
		experiments.GET("/:id/history", s.handleGetHistory)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
