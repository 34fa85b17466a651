package middleware

import (
	"strconv"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common/helper"
	"github.com/fuchsia74/grok-relay/monitor"
)

// TracingMiddleware records how long each request took to send its first
// byte and to finish. For streams the first byte is the first SSE frame.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		writer := &tracingResponseWriter{
			ResponseWriter: c.Writer,
			route:          route,
			start:          start,
			firstWrite:     true,
		}
		c.Writer = writer

		c.Next()

		status := c.Writer.Status()
		monitor.ObserveRequest(route, strconv.Itoa(status), time.Since(start))
		gmw.GetLogger(c).Debug("request finished",
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("elapsed_ms", helper.CalcElapsedTime(start)))
	}
}

// tracingResponseWriter wraps gin.ResponseWriter to capture first response timing
type tracingResponseWriter struct {
	gin.ResponseWriter
	route      string
	start      time.Time
	firstWrite bool
}

func (w *tracingResponseWriter) markFirstWrite() {
	if w.firstWrite {
		w.firstWrite = false
		monitor.ObserveFirstByte(w.route, time.Since(w.start))
	}
}

func (w *tracingResponseWriter) Write(data []byte) (int, error) {
	w.markFirstWrite()
	return w.ResponseWriter.Write(data)
}

func (w *tracingResponseWriter) WriteHeader(statusCode int) {
	w.markFirstWrite()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *tracingResponseWriter) WriteString(s string) (int, error) {
	w.markFirstWrite()
	return w.ResponseWriter.WriteString(s)
}
