package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common"
	"github.com/fuchsia74/grok-relay/common/ctxkey"
)

// RelayPanicRecover turns a handler panic into an OpenAI shaped 500. Once an
// event stream has started only the log entry is written.
func RelayPanicRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				body, _ := common.GetRequestBody(c)
				gmw.GetLogger(c).Error("panic detected",
					zap.Any("panic", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("model", c.GetString(ctxkey.RequestModel)),
					zap.ByteString("request_body", body))
				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, gin.H{
						"error": gin.H{
							"message": fmt.Sprintf("panic detected: %v", err),
							"type":    "grok_relay_panic",
						},
					})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
