package middleware

import (
	"context"
	"net/http"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common/ctxkey"
	"github.com/fuchsia74/grok-relay/common/graceful"
	"github.com/fuchsia74/grok-relay/relay/model"
)

// AbortWithError aborts the request with an OpenAI shaped error body.
func AbortWithError(c *gin.Context, statusCode int, code string, err error) {
	lg := gmw.GetLogger(c)
	if ignoreServerError(err) {
		lg.Warn("server abort", zap.Int("status_code", statusCode), zap.Error(err))
	} else {
		lg.Error("server abort", zap.Int("status_code", statusCode), zap.Error(err))
	}

	apiErr := model.ErrorWrapper(err, code, statusCode)
	if id := c.GetString(ctxkey.RequestId); id != "" {
		apiErr.Message += " (request id: " + id + ")"
	}
	c.JSON(statusCode, gin.H{"error": apiErr.Error})
	c.Abort()
}

func ignoreServerError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, graceful.ErrDraining)
}

// GracefulTracker counts in-flight requests for shutdown draining and
// refuses new ones once draining started.
func GracefulTracker() gin.HandlerFunc {
	return func(c *gin.Context) {
		if graceful.IsDraining() {
			c.Header("Connection", "close")
			AbortWithError(c, http.StatusServiceUnavailable, "server_draining", graceful.ErrDraining)
			return
		}
		done := graceful.BeginRequest()
		defer done()
		c.Next()
	}
}
