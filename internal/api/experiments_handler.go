package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trafficbandit/allocator/internal/apperr"
	"github.com/trafficbandit/allocator/internal/db"
	"github.com/trafficbandit/allocator/internal/validation"
)

// createExperimentRequest is the POST /experiments body, per spec.md §6.
type createExperimentRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Variants    []variantInputDTO `json:"variants"`
}

type variantInputDTO struct {
	Name      string `json:"name"`
	IsControl bool   `json:"is_control"`
}

// handleCreateExperiment creates an experiment with its variants. Fails
// with 422 on shape/invariant violations, 409 on a duplicate name.
func (s *Server) handleCreateExperiment(c *gin.Context) {
	var req createExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, "experiments", apperr.Field("body", "request body must be valid JSON matching the experiment shape"))
		return
	}

	v := validation.NewValidator()
	v.Required("name", req.Name)
	v.MaxLength("name", req.Name, 255)
	if err := v.Err(); err != nil {
		writeError(c, "experiments", err)
		return
	}

	variants := make([]db.VariantInput, len(req.Variants))
	for i, vi := range req.Variants {
		variants[i] = db.VariantInput{Name: vi.Name, IsControl: vi.IsControl}
	}

	experiment, err := s.store.CreateExperiment(c.Request.Context(), req.Name, req.Description, variants)
	if err != nil {
		writeError(c, "experiments", err)
		return
	}

	c.JSON(http.StatusCreated, experiment)
}

// handleGetExperiment returns one experiment by UUID or exact name.
func (s *Server) handleGetExperiment(c *gin.Context) {
	experiment, err := s.store.GetExperiment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, "experiments", err)
		return
	}
	c.JSON(http.StatusOK, experiment)
}
