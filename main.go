package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"github.com/fuchsia74/grok-relay/common"
	"github.com/fuchsia74/grok-relay/common/client"
	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/graceful"
	"github.com/fuchsia74/grok-relay/common/logger"
	"github.com/fuchsia74/grok-relay/middleware"
	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
	"github.com/fuchsia74/grok-relay/relay/asset"
	rcontroller "github.com/fuchsia74/grok-relay/relay/controller"
	"github.com/fuchsia74/grok-relay/router"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := common.Init(); err != nil {
		logger.Logger.Fatal("failed to initialize", zap.Error(err))
	}
	if err := logger.SetupLogger(); err != nil {
		logger.Logger.Fatal("failed to setup logger", zap.Error(err))
	}
	logger.SetupEnhancedLogger(ctx)
	logger.Logger.Info("grok relay started", zap.String("version", common.Version))

	if config.GinMode != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := client.Init(); err != nil {
		logger.Logger.Fatal("failed to initialize http clients", zap.Error(err))
	}
	if err := common.InitRedisClient(); err != nil {
		logger.Logger.Fatal("failed to initialize Redis", zap.Error(err))
	}

	assetOpts := []asset.Option{
		asset.WithHTTPClient(client.AssetHTTPClient),
		asset.WithIndexTTL(config.AssetIndexTTL),
		asset.WithLogger(logger.Logger.Named("asset")),
	}
	if common.IsRedisEnabled() {
		assetOpts = append(assetOpts, asset.WithRedis(common.RDB))
	}
	assets := asset.NewService(config.AssetBaseURL, config.AssetCacheDir, assetOpts...)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	graceful.GoCritical(workerCtx, "asset-retention", func(ctx context.Context) {
		assets.RunRetentionCleaner(ctx, time.Duration(config.AssetRetentionHours)*time.Hour)
	})
	graceful.GoCritical(workerCtx, "log-retention", logger.RunLogRetentionCleaner)

	rcontroller.Setup(
		grok.NewClient(config.UpstreamBaseURL, client.HTTPClient, logger.Logger.Named("upstream")),
		assets.Opener(),
	)

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	// gzip would buffer SSE frames, keep it off
	server.Use(middleware.RequestId())
	server.Use(middleware.TracingMiddleware())
	router.SetRouter(server, assets)

	srv := &http.Server{
		Addr:              ":" + config.ServerPort,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Logger.Info("server started", zap.String("address", "http://localhost:"+config.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	graceful.SetDraining()
	stopWorkers()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(config.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := graceful.Drain(shutdownCtx); err != nil {
		logger.Logger.Warn("in-flight requests did not drain in time", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("server forced to shutdown", zap.Error(err))
	}
	cancel()
	logger.Logger.Info("server exited")
}
