package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/ringlink/pkg/metrics"
)

// Metrics records the duration of every request by route
func Metrics() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordRequest(string(c.Method()), path, c.Response.StatusCode(), time.Since(start))
	}
}
