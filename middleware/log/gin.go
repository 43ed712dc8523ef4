package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TraceIDHeader is the HTTP header used to propagate trace IDs across services.
const TraceIDHeader = "X-Trace-ID"

// RequestLogger returns a gin middleware that assigns each request a trace ID
// and logs the request outcome with latency and status.
//
// The trace ID is taken from the X-Trace-ID header when the caller provides
// one, otherwise a new one is generated. It is stored in the request context
// so downstream code using the *Context logging helpers correlates
// automatically, and echoed back in the response header.
func RequestLogger(log *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = NewTraceID()
		}
		ctx := WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceIDHeader, traceID)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if uid, ok := c.Get("uid"); ok {
			fields = append(fields, zap.String("uid", uid.(string)))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			log.ErrorContext(ctx, "request failed", fields...)
		case c.Writer.Status() >= 400:
			log.WarnContext(ctx, "request rejected", fields...)
		default:
			log.InfoContext(ctx, "request completed", fields...)
		}
	}
}
