package asset

import (
	"context"
	"strings"
	"time"

	"github.com/fuchsia74/grok-relay/common/retention"
)

// RunRetentionCleaner removes cached assets older than maxAge until ctx is
// cancelled. A non-positive maxAge disables it.
func (s *Service) RunRetentionCleaner(ctx context.Context, maxAge time.Duration) {
	retention.Run(ctx, s.lg, retention.Policy{
		Name:     "asset",
		Dir:      s.dir,
		MaxAge:   maxAge,
		Interval: 30 * time.Minute,
		// in-progress downloads
		Match: func(name string) bool { return !strings.HasPrefix(name, ".download-") },
	})
}
