package asset

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/Laisky/errors/v2"

	"github.com/fuchsia74/grok-relay/monitor"
	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
)

var ErrSessionClosed = errors.New("asset session closed")

// Session is the per-run handle processors use to materialize assets.
type Session struct {
	svc    *Service
	closed atomic.Bool
}

var _ grok.Materializer = (*Session)(nil)

// Download caches the asset so it can be served under /v1/files/{kind}{path}.
func (s *Session) Download(ctx context.Context, path, token string, kind grok.MediaKind) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	p, err := normalizePath(path)
	if err != nil {
		return err
	}
	if _, _, err := s.svc.ensure(ctx, p, token, kind); err != nil {
		return err
	}
	return nil
}

// ToBase64 caches the asset and returns it as a data URI.
func (s *Session) ToBase64(ctx context.Context, pathOrURL, token string, kind grok.MediaKind) (string, error) {
	if s.closed.Load() {
		return "", ErrSessionClosed
	}
	p, err := normalizePath(pathOrURL)
	if err != nil {
		return "", err
	}
	local, contentType, err := s.svc.ensure(ctx, p, token, kind)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return "", errors.Wrapf(err, "read cached asset %s", p)
	}
	return dataURI(contentType, data), nil
}

// Close releases the session. Further calls fail; closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		monitor.AssetSessionClosed()
	}
	return nil
}
