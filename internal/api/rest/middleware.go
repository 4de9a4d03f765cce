package rest

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oshokin/smokewatch/internal/logger"
	"github.com/oshokin/smokewatch/internal/metrics"
)

// requestIDHeader carries the request id in both directions.
const requestIDHeader = "X-Request-ID"

// requestContext attaches the base logger and a request id to every request context.
func requestContext(base context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Header(requestIDHeader, id)

		ctx := logger.ToContext(c.Request.Context(), logger.FromContext(base).With("request_id", id))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// accessLog logs each request at debug level and records HTTP metrics when m is set.
// The route template is used as the path label to keep cardinality bounded.
func accessLog(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		logger.DebugKV(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", duration,
			"remote", c.ClientIP(),
		)

		if m == nil {
			return
		}

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())
	}
}
