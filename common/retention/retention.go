// Package retention removes aged files from a directory tree in the background.
package retention

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
)

// Policy describes one cleanup target.
type Policy struct {
	// Name labels log entries, e.g. "log" or "asset".
	Name string
	Dir  string
	// MaxAge is the age threshold; files modified earlier are removed.
	MaxAge time.Duration
	// Interval between sweeps. Defaults to one hour.
	Interval time.Duration
	// Match filters candidate files by base name. Nil matches everything.
	Match func(name string) bool
}

// Run sweeps once immediately and then once per interval, blocking until ctx
// is done. It returns at once when the policy is disabled.
func Run(ctx context.Context, lg glog.Logger, p Policy) {
	lg = lg.With(zap.String("retention", p.Name))
	if p.MaxAge <= 0 {
		lg.Debug("retention disabled")
		return
	}
	if strings.TrimSpace(p.Dir) == "" {
		lg.Warn("retention enabled but directory is empty")
		return
	}
	if p.Interval <= 0 {
		p.Interval = time.Hour
	}

	sweep := func() {
		removed, err := Sweep(p, time.Now())
		if err != nil {
			lg.Warn("retention sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			lg.Info("retention sweep removed files", zap.Int("removed", removed))
		}
	}
	sweep()

	lg.Info("retention cleaner started",
		zap.String("dir", p.Dir),
		zap.Duration("max_age", p.MaxAge),
		zap.Duration("interval", p.Interval))

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			lg.Info("retention cleaner stopped", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// Sweep deletes matching regular files under p.Dir older than p.MaxAge relative
// to now, returning how many were removed. A missing directory is not an error.
func Sweep(p Policy, now time.Time) (int, error) {
	cutoff := now.Add(-p.MaxAge)
	removed := 0

	err := filepath.WalkDir(p.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || (p.Match != nil && !p.Match(d.Name())) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", path)
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, errors.Wrapf(err, "walk %s", p.Dir)
	}
	return removed, nil
}
