package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trafficbandit/allocator/internal/apperr"
	"github.com/trafficbandit/allocator/internal/db"
)

// recordMetricsRequest is the POST /experiments/{id}/metrics body, per
// spec.md §6.
type recordMetricsRequest struct {
	Date    string           `json:"date"`
	Metrics []metricEntryDTO `json:"metrics"`
	Source  string           `json:"source"`
	BatchID string           `json:"batch_id"`
}

type metricEntryDTO struct {
	VariantName string   `json:"variant_name"`
	Impressions int64    `json:"impressions"`
	Clicks      int64    `json:"clicks"`
	Sessions    *int64   `json:"sessions,omitempty"`
	Revenue     *float64 `json:"revenue,omitempty"`
}

type recordMetricsResponse struct {
	Message         string  `json:"message"`
	Date            string  `json:"date"`
	VariantsUpdated int     `json:"variants_updated"`
	BatchID         *string `json:"batch_id,omitempty"`
}

var validMetricSources = map[db.MetricSource]bool{
	db.SourceAPI:    true,
	db.SourceGAM:    true,
	db.SourceCDP:    true,
	db.SourceManual: true,
}

// handleRecordMetrics appends a batch of per-variant daily counts. Fails
// with 404 for an unknown experiment or variant, 422 for negative counts or
// clicks exceeding impressions.
func (s *Server) handleRecordMetrics(c *gin.Context) {
	experimentID := c.Param("id")

	var req recordMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, "metrics", apperr.Field("body", "request body must be valid JSON matching the metrics shape"))
		return
	}

	metricDate, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(c, "metrics", apperr.Field("date", "must be an ISO-8601 date (YYYY-MM-DD)"))
		return
	}

	if len(req.Metrics) == 0 {
		writeError(c, "metrics", apperr.Field("metrics", "at least one metric entry is required"))
		return
	}

	source := db.MetricSource(req.Source)
	if !validMetricSources[source] {
		writeError(c, "metrics", apperr.Field("source", "must be one of: api, gam, cdp, manual"))
		return
	}

	entries := make([]db.MetricEntry, len(req.Metrics))
	for i, m := range req.Metrics {
		entries[i] = db.MetricEntry{
			VariantName: m.VariantName,
			Impressions: m.Impressions,
			Clicks:      m.Clicks,
			Sessions:    m.Sessions,
			Revenue:     m.Revenue,
		}
	}

	count, err := s.store.RecordMetrics(c.Request.Context(), experimentID, metricDate, entries, source, req.BatchID)
	if err != nil {
		writeError(c, "metrics", err)
		return
	}

	resp := recordMetricsResponse{
		Message:         "metrics recorded",
		Date:            req.Date,
		VariantsUpdated: count,
	}
	if req.BatchID != "" {
		resp.BatchID = &req.BatchID
	}

	c.JSON(http.StatusCreated, resp)
}
