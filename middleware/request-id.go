package middleware

import (
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common/ctxkey"
	"github.com/fuchsia74/grok-relay/common/helper"
)

// RequestId tags every request with an id, echoes it as a header and adds it
// to the request scoped logger.
func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(ctxkey.RequestId)
		if id == "" {
			id = helper.GenRequestID()
		}
		c.Set(ctxkey.RequestId, id)
		c.Header(ctxkey.RequestId, id)
		gmw.SetLogger(c, gmw.GetLogger(c).With(zap.String("request_id", id)))
		c.Next()
	}
}
