package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v5"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/retention"
)

var (
	// Logger is the process wide logger. Request handlers should prefer the
	// request scoped logger from gin-middlewares.
	Logger       glog.Logger
	setupLogOnce sync.Once
	initLogOnce  sync.Once
)

func init() {
	initLogger()
}

func initLogger() {
	initLogOnce.Do(func() {
		var err error
		level := glog.LevelInfo
		if config.DebugEnabled {
			level = glog.LevelDebug
		}

		Logger, err = glog.NewConsoleWithName("grok-relay", level)
		if err != nil {
			panic(fmt.Sprintf("failed to create logger: %+v", err))
		}
	})
}

// LogFilePath returns the file gin output is mirrored to under dir.
func LogFilePath(dir string, now time.Time) string {
	if config.OnlyOneLogFile {
		return filepath.Join(dir, "grok-relay.log")
	}
	return filepath.Join(dir, fmt.Sprintf("grok-relay-%s.log", now.Format("20060102")))
}

// SetupLogger mirrors gin's access and error output into a log file when
// config.LogDir is set. It only takes effect once per process.
func SetupLogger() error {
	var err error
	setupLogOnce.Do(func() {
		if config.LogDir == "" {
			return
		}
		if err = os.MkdirAll(config.LogDir, 0o755); err != nil {
			err = errors.Wrapf(err, "create log dir %s", config.LogDir)
			return
		}

		logPath := LogFilePath(config.LogDir, time.Now())
		fd, openErr := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if openErr != nil {
			err = errors.Wrapf(openErr, "open log file %s", logPath)
			return
		}
		gin.DefaultWriter = io.MultiWriter(os.Stdout, fd)
		gin.DefaultErrorWriter = io.MultiWriter(os.Stderr, fd)
		Logger.Info("gin output mirrored to file", zap.String("log_path", logPath))
	})
	return err
}

// SetupEnhancedLogger attaches the optional alert pusher and the hostname
// field, then applies the configured level.
func SetupEnhancedLogger(ctx context.Context) {
	opts := []zap.Option{}

	if config.LogPushAPI != "" {
		ratelimiter, err := gutils.NewRateLimiter(ctx, gutils.RateLimiterArgs{
			Max:     1,
			NPerSec: 1,
		})
		if err != nil {
			Logger.Panic("create ratelimiter", zap.Error(err))
		}

		alertPusher, err := glog.NewAlert(
			ctx,
			config.LogPushAPI,
			glog.WithAlertType(config.LogPushType),
			glog.WithAlertToken(config.LogPushToken),
			glog.WithAlertHookLevel(zap.ErrorLevel),
			glog.WithRateLimiter(ratelimiter),
		)
		if err != nil {
			Logger.Panic("create alert pusher", zap.Error(err))
		}

		opts = append(opts, zap.HooksWithFields(alertPusher.GetZapHook()))
		Logger.Info("alert pusher configured",
			zap.String("alert_api", config.LogPushAPI),
			zap.String("alert_type", config.LogPushType),
		)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	Logger = Logger.WithOptions(opts...).With(zap.String("host", hostname))

	if config.DebugEnabled {
		_ = Logger.ChangeLevel("debug")
		Logger.Debug("running in debug mode")
	} else {
		_ = Logger.ChangeLevel("info")
	}
}

// RunLogRetentionCleaner removes mirrored log files older than
// config.LogRetentionDays until ctx is cancelled. It returns at once when
// retention or LOG_DIR is unset.
func RunLogRetentionCleaner(ctx context.Context) {
	if config.LogDir == "" {
		return
	}
	retention.Run(ctx, Logger, retention.Policy{
		Name:   "log",
		Dir:    config.LogDir,
		MaxAge: time.Duration(config.LogRetentionDays) * 24 * time.Hour,
		Match: func(name string) bool {
			return strings.HasPrefix(name, "grok-relay") && strings.HasSuffix(name, ".log")
		},
	})
}
