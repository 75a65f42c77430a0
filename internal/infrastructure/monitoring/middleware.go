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

		c.Next()

		// Use the route template so /background/:id stays one series
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordHTTPRequest(method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures a command from submit to result
type Timer struct {
	start   time.Time
	metrics *Metrics
	mode    string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, mode string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		mode:    mode,
	}
}

// Stop stops the timer and records the outcome
func (t *Timer) Stop(outcome string) time.Duration {
	duration := time.Since(t.start)
	t.metrics.RecordCommand(t.mode, outcome, duration)
	return duration
}
