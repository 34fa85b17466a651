// Package asset materializes token gated upstream assets into a local file
// cache and serves them back under /v1/files.
package asset

import (
	"context"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/fuchsia74/grok-relay/common/image"
	"github.com/fuchsia74/grok-relay/common/logger"
	"github.com/fuchsia74/grok-relay/monitor"
	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
)

const (
	// maxAssetSize bounds a single download.
	maxAssetSize = 256 << 20
	octetStream  = "application/octet-stream"
)

var (
	ErrNotFound    = errors.New("asset not found")
	ErrInvalidPath = errors.New("invalid asset path")
	ErrUnknownKind = errors.New("unknown asset kind")
)

// Service downloads assets once and shares the cached copies. It is safe for
// concurrent use; processors reach it through per-run Sessions.
type Service struct {
	baseURL string
	dir     string
	client  *http.Client
	idx     *index
	group   singleflight.Group
	lg      glog.Logger
}

type Option func(*options)

type options struct {
	client   *http.Client
	rdb      redis.Cmdable
	indexTTL time.Duration
	lg       glog.Logger
}

func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.client = c } }

// WithRedis shares the asset index through redis.
func WithRedis(rdb redis.Cmdable) Option { return func(o *options) { o.rdb = rdb } }

func WithIndexTTL(ttl time.Duration) Option { return func(o *options) { o.indexTTL = ttl } }

func WithLogger(lg glog.Logger) Option { return func(o *options) { o.lg = lg } }

// NewService creates a service fetching from baseURL into dir.
func NewService(baseURL, dir string, opts ...Option) *Service {
	o := options{client: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lg == nil {
		o.lg = logger.Logger
	}
	lg := o.lg.Named("asset")

	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		dir:     dir,
		client:  o.client,
		idx:     newIndex(o.indexTTL, o.rdb, lg),
		lg:      lg,
	}
}

// Dir is the cache root.
func (s *Service) Dir() string { return s.dir }

// Open returns a new session for one processor run.
func (s *Service) Open() *Session {
	monitor.AssetSessionOpened()
	return &Session{svc: s}
}

// Opener adapts Open to the processor option.
func (s *Service) Opener() grok.MaterializerOpener {
	return func() grok.Materializer { return s.Open() }
}

func parseKind(kind string) (grok.MediaKind, error) {
	switch k := grok.MediaKind(kind); k {
	case grok.MediaImage, grok.MediaVideo:
		return k, nil
	default:
		return "", errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
}

// normalizePath reduces a reference to a clean absolute upstream path,
// rejecting anything that escapes the root.
func normalizePath(ref string) (string, error) {
	p := ref
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		u, err := url.Parse(p)
		if err != nil {
			return "", errors.Wrapf(ErrInvalidPath, "parse %q", ref)
		}
		p = u.Path
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", errors.Wrapf(ErrInvalidPath, "%q", ref)
		}
	}
	p = path.Clean(p)
	if p == "/" || strings.ContainsRune(p, '\\') {
		return "", errors.Wrapf(ErrInvalidPath, "%q", ref)
	}
	return p, nil
}

// localPath maps an asset to its file under the cache directory.
func (s *Service) localPath(kind grok.MediaKind, p string) string {
	return filepath.Join(s.dir, string(kind), filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

func indexKey(kind grok.MediaKind, p string) string {
	return string(kind) + p
}

// ensure makes sure the asset is cached locally, downloading it at most once
// across concurrent callers. It returns the local file and content type.
func (s *Service) ensure(ctx context.Context, p, token string, kind grok.MediaKind) (string, string, error) {
	key := indexKey(kind, p)
	local := s.localPath(kind, p)

	if contentType, ok := s.cached(ctx, key, local); ok {
		monitor.RecordAssetDownload(string(kind), "cached")
		return local, contentType, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if contentType, ok := s.cached(ctx, key, local); ok {
			return contentType, nil
		}
		return s.download(ctx, p, token, kind, local)
	})
	if err != nil {
		monitor.RecordAssetDownload(string(kind), "error")
		return "", "", err
	}
	monitor.RecordAssetDownload(string(kind), "downloaded")
	return local, v.(string), nil
}

// cached reports whether the file exists, recovering its content type from
// the index or, failing that, from its extension.
func (s *Service) cached(ctx context.Context, key, local string) (string, bool) {
	info, err := os.Stat(local)
	if err != nil || info.IsDir() {
		return "", false
	}
	if contentType, ok := s.idx.lookup(ctx, key); ok {
		return contentType, true
	}
	contentType := contentTypeByExt(local)
	s.idx.store(ctx, key, contentType)
	return contentType, true
}

func (s *Service) download(ctx context.Context, p, token string, kind grok.MediaKind, local string) (string, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+p, nil)
	if err != nil {
		return "", errors.Wrap(err, "build asset request")
	}
	setAuth(req, token)
	req.Header.Set("Referer", "https://grok.com/")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetch asset %s", p)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", errors.Wrapf(ErrNotFound, "upstream asset %s", p)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("fetch asset %s: status %d: %s", p, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", errors.Wrap(err, "create asset directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(local), ".download-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp asset file")
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxAssetSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", errors.Wrapf(err, "store asset %s", p)
	}
	if n > maxAssetSize {
		return "", errors.Errorf("asset %s exceeds %d bytes", p, maxAssetSize)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", errors.Wrap(err, "move asset into cache")
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != octetStream {
		contentType = mt
	} else {
		contentType = contentTypeByExt(local)
	}
	if contentType == octetStream && kind == grok.MediaImage {
		if cfg, err := image.SniffFile(local); err == nil {
			contentType = cfg.MIMEType
		}
	}
	s.idx.store(ctx, indexKey(kind, p), contentType)

	s.lg.Debug("asset downloaded",
		zap.String("kind", string(kind)),
		zap.String("path", p),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(start)))
	return contentType, nil
}

func setAuth(req *http.Request, token string) {
	if token == "" {
		return
	}
	token = strings.TrimPrefix(token, "sso=")
	req.Header.Set("Cookie", "sso="+token+"; sso-rw="+token)
}

func contentTypeByExt(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
		return ct
	}
	return octetStream
}

// Lookup returns the cached file and content type of an asset without fetching it.
func (s *Service) Lookup(ctx context.Context, kind, ref string) (string, string, error) {
	k, err := parseKind(kind)
	if err != nil {
		return "", "", err
	}
	p, err := normalizePath(ref)
	if err != nil {
		return "", "", err
	}
	local := s.localPath(k, p)
	contentType, ok := s.cached(ctx, indexKey(k, p), local)
	if !ok {
		return "", "", errors.Wrapf(ErrNotFound, "%s%s", k, p)
	}
	return local, contentType, nil
}

func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
