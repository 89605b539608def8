package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trafficbandit/allocator/internal/apperr"
)

func TestStatusForKind(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.Validation, http.StatusUnprocessableEntity},
		{apperr.NotFound, http.StatusNotFound},
		{apperr.NameConflict, http.StatusConflict},
		{apperr.RateLimited, http.StatusTooManyRequests},
		{apperr.UpstreamUnavailable, http.StatusInternalServerError},
		{apperr.Internal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForKind(tc.kind))
	}
}
