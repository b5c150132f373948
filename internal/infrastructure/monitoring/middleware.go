package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Process request
		c.Next()

		// Prefer the route template so path cardinality stays bounded.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())

		metrics.RecordHTTPRequest(method, path, status, duration)
	}
}

// Timer measures operation duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	target  string
	method  string
}

// NewTimer creates a new timer for an outbound operation
func NewTimer(metrics *Metrics, target, method string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		target:  target,
		method:  method,
	}
}

// Stop stops the timer and records the attempt
func (t *Timer) Stop(status string, failed bool) {
	duration := time.Since(t.start)
	t.metrics.RecordCallAttempt(t.target, t.method, status, duration, failed)
}
