// Package router registers the HTTP routes of the relay.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/controller"
	"github.com/fuchsia74/grok-relay/middleware"
	"github.com/fuchsia74/grok-relay/relay/asset"
)

func SetRouter(server *gin.Engine, assets *asset.Service) {
	SetApiRouter(server)
	SetRelayRouter(server, assets)
	if config.EnablePrometheusMetrics {
		server.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	server.NoRoute(controller.RelayNotFound)
}

func SetApiRouter(server *gin.Engine) {
	apiRouter := server.Group("/api")
	apiRouter.GET("/status", controller.GetStatus)
}

func SetRelayRouter(server *gin.Engine, assets *asset.Service) {
	modelsRouter := server.Group("/v1/models")
	{
		modelsRouter.GET("", controller.ListModels)
		modelsRouter.GET("/:model", controller.RetrieveModel)
	}

	relayV1Router := server.Group("/v1")
	relayV1Router.Use(middleware.RelayPanicRecover(), middleware.GracefulTracker())
	{
		relayV1Router.POST("/chat/completions", controller.Relay)
		relayV1Router.POST("/images/generations", controller.Relay)
		relayV1Router.POST("/completions", controller.RelayNotImplemented)
		relayV1Router.POST("/embeddings", controller.RelayNotImplemented)
		relayV1Router.POST("/images/edits", controller.RelayNotImplemented)
		relayV1Router.POST("/audio/speech", controller.RelayNotImplemented)
	}

	server.GET("/v1/files/:kind/*path", asset.Handler(assets))
}
