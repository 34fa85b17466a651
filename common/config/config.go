package config

import (
	"strings"
	"time"

	"github.com/fuchsia74/grok-relay/common/env"
)

var (
	// AppURL is the externally visible base URL used to build absolute asset links.
	// When empty, materialized assets are returned as relative /v1/files paths.
	AppURL = strings.TrimSuffix(env.String("APP_URL", ""), "/")

	// ShowThinking surfaces upstream reasoning wrapped in <think> markers by default.
	// Requests may override it with the thinking query parameter.
	ShowThinking = env.Bool("SHOW_THINKING", false)
	// ShowToolCalls renders legacy tool-call token runs as short annotations.
	ShowToolCalls = env.Bool("SHOW_TOOL_CALLS", true)
	// FilterTags drops any token whose text contains one of these substrings.
	FilterTags = env.StringSlice("FILTER_TAGS", []string{"xaiartifact", "xai:tool_usage_card", "grok:render"})

	// ImageFormat selects how generated images are embedded into chat content: url or base64.
	ImageFormat = strings.ToLower(env.String("IMAGE_FORMAT", "url"))
	// VideoFormat selects the terminal video rendering: html (player markup) or url (bare link).
	VideoFormat = strings.ToLower(env.String("VIDEO_FORMAT", "html"))
	// VideoPosterPreview replaces the inline player with a clickable thumbnail poster.
	VideoPosterPreview = env.Bool("VIDEO_POSTER_PREVIEW", false)

	// UpstreamBaseURL is the Grok web API origin conversations are posted to.
	UpstreamBaseURL = strings.TrimSuffix(env.String("UPSTREAM_BASE_URL", "https://grok.com"), "/")
	// UpstreamTimeout bounds a whole upstream conversation, streaming included. Zero disables it.
	UpstreamTimeout = env.Duration("UPSTREAM_TIMEOUT", 10*time.Minute)
	// RelayProxy provides an HTTP proxy for upstream conversation and asset requests.
	RelayProxy = env.String("RELAY_PROXY", "")

	// AssetBaseURL is the origin token-gated generated assets are downloaded from.
	AssetBaseURL = strings.TrimSuffix(env.String("ASSET_BASE_URL", "https://assets.grok.com"), "/")
	// AssetCacheDir stores materialized assets served under /v1/files.
	AssetCacheDir = env.String("ASSET_CACHE_DIR", "./data/assets")
	// AssetIndexTTL controls how long asset metadata stays in the in-process and redis index.
	AssetIndexTTL = env.Duration("ASSET_INDEX_TTL", 24*time.Hour)
	// AssetRetentionHours removes cached assets older than this many hours (0 disables cleanup).
	AssetRetentionHours = func() int {
		v := env.Int("ASSET_RETENTION_HOURS", 72)
		if v < 0 {
			return 0
		}
		return v
	}()

	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)

	// ServerPort is the HTTP listen port.
	ServerPort = env.String("PORT", "8000")
	// GinMode allows forcing Gin into debug mode without recompiling.
	GinMode = env.String("GIN_MODE", "")
	// ShutdownTimeoutSec specifies the graceful shutdown timeout (seconds) for in-flight streams.
	ShutdownTimeoutSec = env.Int("SHUTDOWN_TIMEOUT", 60)

	// EnablePrometheusMetrics exposes the /metrics endpoint for Prometheus scrapers when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)

	// RedisConnString defines the Redis connection string; leaving it empty keeps the asset index in process.
	RedisConnString = env.String("REDIS_CONN_STRING", "")
	// RedisMasterName enables Redis sentinel/cluster discovery when provided.
	RedisMasterName = env.String("REDIS_MASTER_NAME", "")
	// RedisPassword supplies the Redis authentication password when required.
	RedisPassword = env.String("REDIS_PASSWORD", "")

	// LogDir mirrors gin output into a file under this directory when set.
	LogDir = env.String("LOG_DIR", "")
	// OnlyOneLogFile writes to a single log file instead of one per day.
	OnlyOneLogFile = env.Bool("ONLY_ONE_LOG_FILE", false)
	// LogRetentionDays determines how many days log files are kept (0 disables cleanup).
	LogRetentionDays = func() int {
		v := env.Int("LOG_RETENTION_DAYS", 0)
		if v < 0 {
			return 0
		}
		return v
	}()

	// LogPushAPI defines the webhook endpoint for escalated log alerts.
	LogPushAPI = env.String("LOG_PUSH_API", "")
	// LogPushType labels outbound log alerts so downstream processors can route them.
	LogPushType = env.String("LOG_PUSH_TYPE", "")
	// LogPushToken authenticates outbound log alert requests.
	LogPushToken = env.String("LOG_PUSH_TOKEN", "")
)
