package ratelimit

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trafficbandit/allocator/internal/metrics"
)

// uuidSegment matches a 36-char hyphenated UUID path segment, normalized to
// the literal "{experiment_id}" so every experiment shares one rate-limit
// bucket per endpoint shape rather than one bucket per ID.
var uuidSegment = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// EndpointLimit pairs a normalized method+path pattern with its window
// limit, per spec.md §4.4's table.
type EndpointLimit struct {
	Method  string
	Pattern string
	Max     int
	Window  time.Duration
}

// DefaultEndpointLimits returns spec.md §4.4's limit table, using the
// upper bound of the allocation endpoint's 60-300/60s range.
func DefaultEndpointLimits() []EndpointLimit {
	return []EndpointLimit{
		{Method: http.MethodPost, Pattern: "/experiments", Max: 10, Window: time.Minute},
		{Method: http.MethodPost, Pattern: "/experiments/{experiment_id}/metrics", Max: 100, Window: time.Minute},
		{Method: http.MethodGet, Pattern: "/experiments/{experiment_id}/allocation", Max: 300, Window: time.Minute},
		{Method: http.MethodGet, Pattern: "/experiments/{experiment_id}/history", Max: 60, Window: time.Minute},
		{Method: http.MethodGet, Pattern: "/experiments/{experiment_id}", Max: 120, Window: time.Minute},
	}
}

const defaultMax = 100

var defaultWindow = time.Minute

// exemptPaths are never rate limited, per spec.md §4.4.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
	"/":        true,
}

// Middleware returns gin middleware enforcing the endpoint-specific limits
// from limits (falling back to a 100/60s default for unmatched endpoints),
// keyed by client IP and the normalized endpoint pattern.
func Middleware(limiter Limiter, limits []EndpointLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if exemptPaths[path] {
			c.Next()
			return
		}

		pattern := normalizePattern(path)
		max, window := lookupLimit(limits, c.Request.Method, pattern)

		ip := clientIP(c)
		key := fmt.Sprintf("%s|%s %s", ip, c.Request.Method, pattern)

		result := limiter.Check(key, max, window)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", int(time.Until(result.ResetAt).Seconds())))

		if !result.Allowed {
			metrics.RecordRateLimitRejection(pattern)
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// normalizePattern replaces any 36-char hyphenated UUID segment in path
// with the literal "{experiment_id}", per spec.md §4.4.
func normalizePattern(path string) string {
	return uuidSegment.ReplaceAllString(path, "{experiment_id}")
}

func lookupLimit(limits []EndpointLimit, method, pattern string) (int, time.Duration) {
	for _, l := range limits {
		if l.Method == method && l.Pattern == pattern {
			return l.Max, l.Window
		}
	}
	return defaultMax, defaultWindow
}

// clientIP returns the first comma-separated token of X-Forwarded-For if
// present, otherwise gin's resolved client IP.
func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.ClientIP()
}
