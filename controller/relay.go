package controller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common/ctxkey"
	"github.com/fuchsia74/grok-relay/monitor"
	rcontroller "github.com/fuchsia74/grok-relay/relay/controller"
	"github.com/fuchsia74/grok-relay/relay/model"
	"github.com/fuchsia74/grok-relay/relay/relaymode"
)

func relayHelper(c *gin.Context, relayMode int) *model.ErrorWithStatusCode {
	switch relayMode {
	case relaymode.ChatCompletions:
		return rcontroller.RelayChatHelper(c)
	case relaymode.ImagesGenerations:
		return rcontroller.RelayImageHelper(c)
	default:
		return model.ErrorWrapper(errors.Errorf("unsupported relay path %s", c.Request.URL.Path), "api_not_implemented", http.StatusNotImplemented)
	}
}

// Relay dispatches an OpenAI compatible request to the matching helper and
// renders its error, if any.
func Relay(c *gin.Context) {
	lg := gmw.GetLogger(c)
	relayMode := relaymode.GetByPath(c.Request.URL.Path)
	startTime := time.Now()

	lg.Debug("incoming relay request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("relay_mode", relaymode.String(relayMode)),
		zap.String("content_type", c.GetHeader("Content-Type")),
		zap.Int64("content_length", c.Request.ContentLength),
	)

	bizErr := relayHelper(c, relayMode)
	requestModel := c.GetString(ctxkey.RequestModel)
	if bizErr == nil {
		monitor.RecordRelayRequest(relaymode.String(relayMode), requestModel, 0)
		lg.Debug("relay request finished", zap.Duration("elapsed", time.Since(startTime)))
		return
	}
	monitor.RecordRelayRequest(relaymode.String(relayMode), requestModel, bizErr.StatusCode)

	if errors.Is(bizErr.RawError, context.Canceled) {
		lg.Warn("relay aborted by client", zap.Int("status_code", bizErr.StatusCode), zap.Error(bizErr.RawError))
	} else if bizErr.StatusCode >= http.StatusInternalServerError {
		lg.Error("relay error", zap.Int("status_code", bizErr.StatusCode), zap.Error(bizErr.RawError))
	} else {
		lg.Info("relay request rejected", zap.Int("status_code", bizErr.StatusCode), zap.Error(bizErr.RawError))
	}

	if requestId := c.GetString(ctxkey.RequestId); requestId != "" {
		bizErr.Error.Message = fmt.Sprintf("%s (request id: %s)", bizErr.Error.Message, requestId)
	}
	c.JSON(bizErr.StatusCode, gin.H{
		"error": bizErr.Error,
	})
}

func RelayNotImplemented(c *gin.Context) {
	msg := "API not implemented"
	c.JSON(http.StatusNotImplemented, gin.H{
		"error": model.Error{
			Message:  msg,
			Type:     "grok_relay_error",
			Code:     "api_not_implemented",
			RawError: errors.New(msg),
		},
	})
}

func RelayNotFound(c *gin.Context) {
	msg := fmt.Sprintf("Invalid URL (%s %s)", c.Request.Method, c.Request.URL.Path)
	c.JSON(http.StatusNotFound, gin.H{
		"error": model.Error{
			Message:  msg,
			Type:     "invalid_request_error",
			RawError: errors.New(msg),
		},
	})
}
