package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fuchsia74/grok-relay/common/config"
)

func TestSetupEnhancedLoggerWithoutAlertPusher(t *testing.T) {
	originalLogger := Logger
	originalAPI := config.LogPushAPI
	t.Cleanup(func() {
		Logger = originalLogger
		config.LogPushAPI = originalAPI
	})

	config.LogPushAPI = ""
	SetupEnhancedLogger(context.Background())
	require.NotNil(t, Logger)
	Logger.Info("enhanced logger ready")
}

func TestSetupEnhancedLoggerDebugToggle(t *testing.T) {
	originalLogger := Logger
	originalDebug := config.DebugEnabled
	t.Cleanup(func() {
		Logger = originalLogger
		config.DebugEnabled = originalDebug
	})

	for _, debug := range []bool{true, false} {
		config.DebugEnabled = debug
		SetupEnhancedLogger(context.Background())
		Logger.Debug("debug entry")
		Logger.Info("info entry")
	}
}

func TestLogFilePath(t *testing.T) {
	originalOnlyOne := config.OnlyOneLogFile
	t.Cleanup(func() { config.OnlyOneLogFile = originalOnlyOne })

	now := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

	config.OnlyOneLogFile = true
	require.Equal(t, filepath.Join("logs", "grok-relay.log"), LogFilePath("logs", now))

	config.OnlyOneLogFile = false
	require.Equal(t, filepath.Join("logs", "grok-relay-20250309.log"), LogFilePath("logs", now))
}

func TestSetupLoggerMirrorsGinOutput(t *testing.T) {
	dir := t.TempDir()

	originalLogDir := config.LogDir
	originalOnlyOne := config.OnlyOneLogFile
	originalDefaultWriter := gin.DefaultWriter
	originalDefaultErrorWriter := gin.DefaultErrorWriter
	t.Cleanup(func() {
		config.LogDir = originalLogDir
		config.OnlyOneLogFile = originalOnlyOne
		gin.DefaultWriter = originalDefaultWriter
		gin.DefaultErrorWriter = originalDefaultErrorWriter
		ResetSetupLogOnceForTests()
	})

	config.LogDir = dir
	config.OnlyOneLogFile = true
	ResetSetupLogOnceForTests()
	require.NoError(t, SetupLogger())

	_, err := fmt.Fprintln(gin.DefaultWriter, "gin access entry")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "grok-relay.log"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(content), "gin access entry"))
}

func TestSetupLoggerWithoutDirIsNoop(t *testing.T) {
	originalLogDir := config.LogDir
	originalDefaultWriter := gin.DefaultWriter
	t.Cleanup(func() {
		config.LogDir = originalLogDir
		gin.DefaultWriter = originalDefaultWriter
		ResetSetupLogOnceForTests()
	})

	config.LogDir = ""
	ResetSetupLogOnceForTests()
	require.NoError(t, SetupLogger())
	require.Equal(t, originalDefaultWriter, gin.DefaultWriter)
}

func TestRunLogRetentionCleanerRemovesOldLogs(t *testing.T) {
	dir := t.TempDir()
	originalLogDir := config.LogDir
	originalDays := config.LogRetentionDays
	t.Cleanup(func() {
		config.LogDir = originalLogDir
		config.LogRetentionDays = originalDays
	})

	old := filepath.Join(dir, "grok-relay-20240101.log")
	keep := filepath.Join(dir, "other.log")
	for _, p := range []string{old, keep} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		stale := time.Now().Add(-10 * 24 * time.Hour)
		require.NoError(t, os.Chtimes(p, stale, stale))
	}

	config.LogDir = dir
	config.LogRetentionDays = 3
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		RunLogRetentionCleaner(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(old)
		return os.IsNotExist(err)
	}, 2*time.Second, 20*time.Millisecond)
	_, err := os.Stat(keep)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
