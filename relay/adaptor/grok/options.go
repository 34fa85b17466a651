package grok

import (
	"time"

	glog "github.com/Laisky/go-utils/v5/log"

	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/random"
)

// FrameWriter receives rendered SSE frames in upstream order.
type FrameWriter interface {
	WriteFrame(frame string) error
}

// FrameWriterFunc adapts a function to FrameWriter.
type FrameWriterFunc func(frame string) error

func (f FrameWriterFunc) WriteFrame(frame string) error { return f(frame) }

// Options is the per-request configuration of a processor. Every field is
// read once at construction.
type Options struct {
	// Model is echoed in every chunk.
	Model string
	// Token is the upstream access token used to fetch generated assets.
	Token  string
	AppURL string

	ShowThinking  bool
	ShowToolCalls bool
	FilterTags    []string
	// ImageFormat controls images embedded in chat content: "url" or "base64".
	ImageFormat string
	// VideoFormat is "html" for player markup or "url" for the bare link.
	VideoFormat        string
	VideoPosterPreview bool

	OpenMaterializer MaterializerOpener
	// Rand picks the image candidate for single image requests.
	Rand   random.Source
	Logger glog.Logger
	Now    func() time.Time
}

// DefaultOptions snapshots the process configuration for one request.
func DefaultOptions(model, token string) Options {
	return Options{
		Model:              model,
		Token:              token,
		AppURL:             config.AppURL,
		ShowThinking:       config.ShowThinking,
		ShowToolCalls:      config.ShowToolCalls,
		FilterTags:         append([]string(nil), config.FilterTags...),
		ImageFormat:        config.ImageFormat,
		VideoFormat:        config.VideoFormat,
		VideoPosterPreview: config.VideoPosterPreview,
	}
}
