package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common"
	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/graceful"
	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
)

var startTime = time.Now().Unix()

// GetStatus reports build and runtime information for health checks.
func GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "",
		"data": gin.H{
			"version":            common.Version,
			"start_time":         startTime,
			"models":             len(grok.ModelList()),
			"redis_enabled":      common.IsRedisEnabled(),
			"image_format":       config.ImageFormat,
			"video_format":       config.VideoFormat,
			"show_thinking":      config.ShowThinking,
			"in_flight_requests": graceful.InFlight(),
		},
	})
}
