package common

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/logger"
)

// Version is overwritten at build time with -ldflags.
var Version = "v0.0.0"

var (
	Port         = flag.String("port", "", "the listening port, overrides PORT")
	PrintVersion = flag.Bool("version", false, "print version and exit")
	LogDir       = flag.String("log-dir", "", "specify the log directory, overrides LOG_DIR")
	AssetDir     = flag.String("asset-dir", "", "specify the asset cache directory, overrides ASSET_CACHE_DIR")
)

// Init parses the command line, applies overrides onto config and prepares
// the directories the process writes to.
func Init() error {
	flag.Parse()

	if *PrintVersion {
		fmt.Println(Version)
		os.Exit(0)
	}

	if *Port != "" {
		config.ServerPort = *Port
	}
	if *LogDir != "" {
		config.LogDir = *LogDir
	}
	if *AssetDir != "" {
		config.AssetCacheDir = *AssetDir
	}

	var err error
	if config.LogDir != "" {
		if config.LogDir, err = prepareDir("log_dir", config.LogDir); err != nil {
			return err
		}
	}
	if config.AssetCacheDir, err = prepareDir("asset_cache_dir", config.AssetCacheDir); err != nil {
		return err
	}
	return nil
}

func prepareDir(name, dir string) (string, error) {
	expanded, err := filepath.Abs(expandDirPath(dir))
	if err != nil {
		return "", errors.Wrapf(err, "get absolute %s", name)
	}
	if err = os.MkdirAll(expanded, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", name)
	}
	logger.Logger.Info("directory ready", zap.String(name, expanded))
	return expanded, nil
}
