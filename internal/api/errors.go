package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/trafficbandit/allocator/internal/apperr"
	"github.com/trafficbandit/allocator/internal/metrics"
)

// writeError translates a domain error into the status code and body shape
// from spec.md §7, recording it for observability.
func writeError(c *gin.Context, component string, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Wrap(apperr.Internal, "an unexpected error occurred", err)
	}

	status := statusForKind(appErr.Kind)
	metrics.RecordError(string(appErr.Kind), component)

	body := gin.H{"error": appErr.Message}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error().Err(appErr.Unwrap())
	}
	event.Str("component", component).Str("kind", string(appErr.Kind)).Int("status", status).Msg("request failed")

	c.JSON(status, body)
}

// statusForKind maps an apperr.Kind to its HTTP status, per spec.md §7.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusUnprocessableEntity
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.NameConflict:
		return http.StatusConflict
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.UpstreamUnavailable, apperr.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
