package grok

import "context"

// MediaKind selects the asset namespace on both the upstream and the local file server.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Materializer turns token gated upstream assets into something the caller
// can fetch. A processor opens one handle lazily and closes it when the run
// ends, whatever the outcome.
type Materializer interface {
	// Download makes the asset at path available under /v1/files/{kind}{path}.
	Download(ctx context.Context, path, token string, kind MediaKind) error
	// ToBase64 returns the asset as a data URI. pathOrURL may be an absolute upstream URL.
	ToBase64(ctx context.Context, pathOrURL, token string, kind MediaKind) (string, error)
	Close() error
}

// MaterializerOpener opens a per-run Materializer handle.
type MaterializerOpener func() Materializer
