package grok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"

	"github.com/fuchsia74/grok-relay/common/random"
	"github.com/fuchsia74/grok-relay/relay/model"
)

// Done is the terminal SSE frame of a chat stream.
const Done = "data: [DONE]\n\n"

// Builder holds the identity of one response (id, creation time, fingerprint)
// and the lazily opened materializer used to resolve assets.
type Builder struct {
	model       string
	token       string
	appURL      string
	created     int64
	responseID  string
	fingerprint string

	openAssets MaterializerOpener
	assets     Materializer
	lg         glog.Logger
}

func newBuilder(opt Options, lg glog.Logger) *Builder {
	return &Builder{
		model:      opt.Model,
		token:      opt.Token,
		appURL:     strings.TrimRight(opt.AppURL, "/"),
		created:    opt.Now().Unix(),
		openAssets: opt.OpenMaterializer,
		lg:         lg,
	}
}

// observe applies the metadata every upstream line may carry: the latest
// response id wins, the first fingerprint sticks.
func (b *Builder) observe(ev *Event) {
	if ev.ResponseID != "" {
		b.responseID = ev.ResponseID
	}
	if ev.ModelHash != "" && b.fingerprint == "" {
		b.fingerprint = ev.ModelHash
	}
}

func (b *Builder) id() string {
	if b.responseID != "" {
		return b.responseID
	}
	return random.CompletionID()
}

func (b *Builder) Chunk(content string) string {
	delta := model.Delta{}
	if content != "" {
		delta.Content = &content
	}
	return b.render(delta, nil)
}

func (b *Builder) RoleChunk() string {
	empty := ""
	return b.render(model.Delta{Role: model.RoleAssistant, Content: &empty}, nil)
}

func (b *Builder) StopChunk() string {
	finish := model.FinishStop
	return b.render(model.Delta{}, &finish)
}

func (b *Builder) render(delta model.Delta, finish *string) string {
	chunk := model.ChatCompletionsStreamResponse{
		Id:                b.id(),
		Object:            model.ObjectChatCompletionChunk,
		Created:           b.created,
		Model:             b.model,
		SystemFingerprint: b.fingerprint,
		Choices: []model.ChatCompletionsStreamResponseChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
	}
	return "data: " + string(marshal(chunk)) + "\n\n"
}

// eventFrame renders a named SSE event, as used by the image stream.
func eventFrame(event string, payload any) string {
	return "event: " + event + "\ndata: " + string(marshal(payload)) + "\n\n"
}

// marshal encodes without HTML escaping so markers and markup stay readable.
func marshal(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// only reachable with unsupported types, which the wire structs never contain
		panic(errors.Wrap(err, "marshal frame"))
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func (b *Builder) materializer() (Materializer, error) {
	if b.assets != nil {
		return b.assets, nil
	}
	if b.openAssets == nil {
		return nil, errors.New("no asset materializer configured")
	}
	b.assets = b.openAssets()
	if b.assets == nil {
		return nil, errors.New("asset materializer opener returned nil")
	}
	return b.assets, nil
}

// Close releases the materializer if one was opened.
func (b *Builder) Close() error {
	if b.assets == nil {
		return nil
	}
	err := b.assets.Close()
	b.assets = nil
	if err != nil {
		return errors.Wrap(err, "close asset materializer")
	}
	return nil
}

// assetPath reduces an asset reference to an absolute upstream path. It
// returns "" for references that cannot name an asset.
func assetPath(raw string) string {
	p := raw
	if strings.HasPrefix(p, "http") {
		u, err := url.Parse(p)
		if err != nil {
			return ""
		}
		p = u.Path
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p == "/" {
		return ""
	}
	return p
}

// ProcessURL materializes an asset and returns the URL callers should use:
// {AppURL}/v1/files/{kind}{path}, or the relative path when AppURL is empty.
// An empty result with a nil error means the reference names no asset.
func (b *Builder) ProcessURL(ctx context.Context, raw string, kind MediaKind) (string, error) {
	p := assetPath(raw)
	if p == "" {
		return "", nil
	}
	m, err := b.materializer()
	if err != nil {
		return "", err
	}
	if err := m.Download(ctx, p, b.token, kind); err != nil {
		return "", errors.Wrapf(err, "download %s asset %s", kind, p)
	}
	return b.appURL + "/v1/files/" + string(kind) + p, nil
}

// resolve is ProcessURL with failures logged and mapped to "".
func (b *Builder) resolve(ctx context.Context, raw string, kind MediaKind) string {
	u, err := b.ProcessURL(ctx, raw, kind)
	if err != nil {
		b.lg.Warn("asset unavailable, omitting it",
			zap.String("asset", raw), zap.String("kind", string(kind)), zap.Error(err))
		return ""
	}
	return u
}

// inline fetches the asset as a data URI, returning "" when it is unavailable.
func (b *Builder) inline(ctx context.Context, raw string, kind MediaKind) string {
	m, err := b.materializer()
	if err != nil {
		b.lg.Warn("inline asset skipped", zap.String("asset", raw), zap.Error(err))
		return ""
	}
	data, err := m.ToBase64(ctx, raw, b.token, kind)
	if err != nil {
		b.lg.Warn("inline asset failed", zap.String("asset", raw), zap.Error(err))
		return ""
	}
	return data
}

// imageMarkdown renders a generated image as ![id](target). format "base64"
// inlines the payload and falls back to the resolved URL.
func (b *Builder) imageMarkdown(ctx context.Context, raw, format string) string {
	parts := strings.Split(raw, "/")
	imgID := "image"
	if len(parts) >= 2 {
		imgID = parts[len(parts)-2]
	}

	target := ""
	if format == model.ImageFormatBase64 {
		target = b.inline(ctx, raw, MediaImage)
	}
	if target == "" {
		target = b.resolve(ctx, raw, MediaImage)
	}
	if target == "" {
		return ""
	}
	return fmt.Sprintf("![%s](%s)\n", imgID, target)
}
