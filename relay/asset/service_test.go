package asset

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
)

// assetHost fakes the upstream asset origin.
type assetHost struct {
	*httptest.Server
	hits    atomic.Int32
	cookies []string
	mu      sync.Mutex
}

func newAssetHost(t *testing.T) *assetHost {
	t.Helper()
	h := &assetHost{}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hits.Add(1)
		h.mu.Lock()
		h.cookies = append(h.cookies, r.Header.Get("Cookie"))
		h.mu.Unlock()

		switch r.URL.Path {
		case "/users/u1/img-1/content":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/users/u1/generated/v1/video.mp4":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte("mp4-bytes"))
		case "/slow/img.png":
			time.Sleep(50 * time.Millisecond)
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/users/u1/raw/content":
			w.Header().Set("Content-Type", "application/octet-stream")
			_ = png.Encode(w, image.NewRGBA(image.Rect(0, 0, 2, 2)))
		case "/forbidden.png":
			http.Error(w, "no cookie", http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(h.Close)
	return h
}

func newTestService(t *testing.T, host *assetHost, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithHTTPClient(host.Client())}, opts...)
	return NewService(host.URL+"/", t.TempDir(), opts...)
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"users/u1/img.png":                          "/users/u1/img.png",
		"/users/u1/img.png":                         "/users/u1/img.png",
		"https://assets.grok.com/users/u1/img.png":  "/users/u1/img.png",
		"https://assets.grok.com/users//u1/./a.png": "/users/u1/a.png",
	}
	for in, want := range cases {
		got, err := normalizePath(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "/", "../etc/passwd", "/users/../../x", `a\b.png`} {
		_, err := normalizePath(bad)
		require.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestSession_Download(t *testing.T) {
	host := newAssetHost(t)
	svc := newTestService(t, host)
	ctx := context.Background()

	sess := svc.Open()
	require.NoError(t, sess.Download(ctx, "/users/u1/img-1/content", "tok", grok.MediaImage))
	require.NoError(t, sess.Download(ctx, "users/u1/img-1/content", "tok", grok.MediaImage))
	require.EqualValues(t, 1, host.hits.Load(), "second download served from cache")
	require.Equal(t, []string{"sso=tok; sso-rw=tok"}, host.cookies)

	data, err := os.ReadFile(filepath.Join(svc.Dir(), "image", "users", "u1", "img-1", "content"))
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(data))

	local, contentType, err := svc.Lookup(ctx, "image", "/users/u1/img-1/content")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", contentType)
	require.FileExists(t, local)

	require.NoError(t, sess.Close())
}

func TestSession_DownloadErrors(t *testing.T) {
	host := newAssetHost(t)
	svc := newTestService(t, host)
	ctx := context.Background()
	sess := svc.Open()
	defer sess.Close()

	err := sess.Download(ctx, "/forbidden.png", "tok", grok.MediaImage)
	require.ErrorContains(t, err, "status 403")

	err = sess.Download(ctx, "/missing.png", "tok", grok.MediaImage)
	require.ErrorIs(t, err, ErrNotFound)

	err = sess.Download(ctx, "/a/../../b.png", "tok", grok.MediaImage)
	require.ErrorIs(t, err, ErrInvalidPath)

	_, _, err = svc.Lookup(ctx, "image", "/forbidden.png")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSession_ToBase64(t *testing.T) {
	host := newAssetHost(t)
	svc := newTestService(t, host)
	sess := svc.Open()
	defer sess.Close()

	got, err := sess.ToBase64(context.Background(), host.URL+"/users/u1/img-1/content", "tok", grok.MediaImage)
	require.NoError(t, err)
	require.Equal(t, "data:image/jpeg;base64,anBlZy1ieXRlcw==", got)

	// octet-stream falls back to the file extension
	got, err = sess.ToBase64(context.Background(), "/users/u1/generated/v1/video.mp4", "tok", grok.MediaVideo)
	require.NoError(t, err)
	require.Equal(t, "data:video/mp4;base64,bXA0LWJ5dGVz", got)
}

func TestSession_ToBase64SniffsUntypedImages(t *testing.T) {
	host := newAssetHost(t)
	svc := newTestService(t, host)
	sess := svc.Open()
	defer sess.Close()

	got, err := sess.ToBase64(context.Background(), "/users/u1/raw/content", "tok", grok.MediaImage)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "data:image/png;base64,"), got)
}

func TestSession_ClosedRejectsUse(t *testing.T) {
	host := newAssetHost(t)
	sess := newTestService(t, host).Open()

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	require.ErrorIs(t, sess.Download(context.Background(), "/users/u1/img-1/content", "tok", grok.MediaImage), ErrSessionClosed)
	_, err := sess.ToBase64(context.Background(), "/users/u1/img-1/content", "tok", grok.MediaImage)
	require.ErrorIs(t, err, ErrSessionClosed)
	require.EqualValues(t, 0, host.hits.Load())
}

func TestService_ConcurrentDownloadsShareOneFetch(t *testing.T) {
	host := newAssetHost(t)
	svc := newTestService(t, host)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := svc.Open()
			defer sess.Close()
			errs <- sess.Download(context.Background(), "/slow/img.png", "tok", grok.MediaImage)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, host.hits.Load())
}

func TestService_RedisIndexSharedAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	host := newAssetHost(t)
	dir := t.TempDir()
	first := NewService(host.URL, dir, WithHTTPClient(host.Client()), WithRedis(rdb), WithIndexTTL(time.Hour))

	sess := first.Open()
	require.NoError(t, sess.Download(context.Background(), "/users/u1/img-1/content", "tok", grok.MediaImage))
	require.NoError(t, sess.Close())

	stored, err := mr.Get(redisKeyPrefix + "image/users/u1/img-1/content")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", stored)
	require.Greater(t, mr.TTL(redisKeyPrefix+"image/users/u1/img-1/content"), time.Duration(0))

	// a replica sharing the directory recovers the content type from redis
	second := NewService(host.URL, dir, WithHTTPClient(host.Client()), WithRedis(rdb))
	_, contentType, err := second.Lookup(context.Background(), "image", "/users/u1/img-1/content")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", contentType)
	require.EqualValues(t, 1, host.hits.Load())
}

func TestService_RedisFailureDegradesToLocalIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.SetError("redis down")

	host := newAssetHost(t)
	svc := newTestService(t, host, WithRedis(rdb))
	sess := svc.Open()
	defer sess.Close()

	got, err := sess.ToBase64(context.Background(), "/users/u1/img-1/content", "tok", grok.MediaImage)
	require.NoError(t, err)
	require.Equal(t, "data:image/jpeg;base64,anBlZy1ieXRlcw==", got)
}

func TestService_RetentionSkipsPartialDownloads(t *testing.T) {
	host := newAssetHost(t)
	svc := newTestService(t, host)
	sess := svc.Open()
	require.NoError(t, sess.Download(context.Background(), "/users/u1/img-1/content", "tok", grok.MediaImage))
	require.NoError(t, sess.Close())

	partial := filepath.Join(svc.Dir(), "image", ".download-123")
	require.NoError(t, os.WriteFile(partial, []byte("x"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(partial, old, old))
	cached := filepath.Join(svc.Dir(), "image", "users", "u1", "img-1", "content")
	require.NoError(t, os.Chtimes(cached, old, old))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		svc.RunRetentionCleaner(ctx, 24*time.Hour)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(cached)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
	require.FileExists(t, partial)

	_, _, err := svc.Lookup(context.Background(), "image", "/users/u1/img-1/content")
	require.True(t, errors.Is(err, ErrNotFound))
}
