package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"flowbuilder/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddlewarePropagatesTraceID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	var traceID, requestID string
	r.GET("/ping", func(c *gin.Context) {
		traceID = logger.GetTraceID(c.Request.Context())
		requestID = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderTraceID, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "trace-123", traceID)
	require.NotEmpty(t, requestID)
	require.Equal(t, requestID, w.Header().Get(HeaderRequestID))
	require.Equal(t, "trace-123", w.Header().Get(HeaderTraceID))
}

func TestRequestIDMiddlewareDefaultsTraceToRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "req-1", w.Header().Get(HeaderTraceID))
}

func TestRateLimitByEndpoint(t *testing.T) {
	limiter := NewRateLimiter(&RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2})
	defer limiter.Stop()

	r := gin.New()
	r.POST("/runs", RateLimitByEndpoint(limiter), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs", nil))
		codes = append(codes, w.Code)
	}
	require.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}, codes)
}
