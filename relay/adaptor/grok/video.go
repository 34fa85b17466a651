package grok

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/Laisky/zap"

	"github.com/fuchsia74/grok-relay/relay/model"
)

const VideoFormatURL = "url"

// BuildVideoHTML renders an inline player for the resolved video.
func BuildVideoHTML(videoURL, thumbnailURL string) string {
	poster := ""
	if thumbnailURL != "" {
		poster = fmt.Sprintf(` poster="%s"`, thumbnailURL)
	}
	return fmt.Sprintf("<video id=\"video\" controls=\"\" preload=\"none\"%s>\n"+
		"  <source id=\"mp4\" src=\"%s\" type=\"video/mp4\">\n"+
		"</video>", poster, videoURL)
}

// BuildVideoPosterPreview renders the thumbnail as a link to the video with a
// play button overlay. Without a thumbnail it degrades to a plain link.
func BuildVideoPosterPreview(videoURL, thumbnailURL string) string {
	video := html.EscapeString(videoURL)
	thumb := html.EscapeString(thumbnailURL)
	if video == "" {
		return ""
	}
	if thumb == "" {
		return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, video, video)
	}

	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer" style="display:inline-block;position:relative;max-width:100%%;text-decoration:none;">
  <img src="%s" alt="video" style="max-width:100%%;height:auto;border-radius:12px;display:block;" />
  <span style="position:absolute;inset:0;display:flex;align-items:center;justify-content:center;">
    <span style="width:64px;height:64px;border-radius:9999px;background:rgba(0,0,0,.55);display:flex;align-items:center;justify-content:center;">
      <span style="width:0;height:0;border-top:12px solid transparent;border-bottom:12px solid transparent;border-left:18px solid #fff;margin-left:4px;"></span>
    </span>
  </span>
</a>`, video, thumb)
}

// videoRenderer resolves the finished video and renders it in the configured form.
type videoRenderer struct {
	format        string
	posterPreview bool
}

func (r videoRenderer) render(ctx context.Context, e *engine, v VideoProgress) string {
	if v.VideoURL == "" {
		return ""
	}
	videoURL := e.b.resolve(ctx, v.VideoURL, MediaVideo)
	if videoURL == "" {
		return ""
	}
	thumbURL := ""
	if v.ThumbnailURL != "" {
		thumbURL = e.b.resolve(ctx, v.ThumbnailURL, MediaImage)
	}
	e.lg.Info("video generated", zap.String("video", v.VideoURL))

	switch {
	case r.format == VideoFormatURL:
		return videoURL
	case r.posterPreview:
		return BuildVideoPosterPreview(videoURL, thumbURL)
	default:
		return BuildVideoHTML(videoURL, thumbURL)
	}
}

// VideoStreamProcessor streams generation progress as thinking content and
// the finished video as a single content chunk.
type VideoStreamProcessor struct {
	engine
	think    thinkingState
	video    videoRenderer
	roleSent bool
}

func NewVideoStreamProcessor(opt Options) *VideoStreamProcessor {
	return &VideoStreamProcessor{
		engine: newEngine("video_stream", &opt),
		think:  thinkingState{show: opt.ShowThinking},
		video:  videoRenderer{format: opt.VideoFormat, posterPreview: opt.VideoPosterPreview},
	}
}

func (p *VideoStreamProcessor) Process(ctx context.Context, upstream io.Reader, w FrameWriter) error {
	p.w = w
	return p.run(ctx, upstream, p)
}

func (p *VideoStreamProcessor) handle(ctx context.Context, ev *Event) error {
	if !p.roleSent {
		if err := p.emit(p.b.RoleChunk()); err != nil {
			return err
		}
		p.roleSent = true
	}
	if ev.Kind != EventVideoProgress {
		return nil
	}

	if marker, ok := p.think.openMarker(); ok {
		if err := p.emitChunk(marker); err != nil {
			return err
		}
	}
	if p.think.show {
		if err := p.emitChunk(fmt.Sprintf("正在生成视频中，当前进度%s%%\n",
			formatProgress(ev.Video.Progress))); err != nil {
			return err
		}
	}
	if !ev.Video.Done() {
		return nil
	}

	if marker, ok := p.think.closeMarker(); ok {
		if err := p.emitChunk(marker); err != nil {
			return err
		}
	}
	if content := p.video.render(ctx, &p.engine, ev.Video); content != "" {
		return p.emitChunk(content)
	}
	return nil
}

func (p *VideoStreamProcessor) finish(context.Context) error {
	if marker, ok := p.think.closeMarker(); ok {
		if err := p.emitChunk(marker); err != nil {
			return err
		}
	}
	if err := p.emit(p.b.StopChunk()); err != nil {
		return err
	}
	return p.emit(Done)
}

// VideoCollectProcessor returns the finished video as a chat.completion.
type VideoCollectProcessor struct {
	engine
	video      videoRenderer
	responseID string
	content    string
}

func NewVideoCollectProcessor(opt Options) *VideoCollectProcessor {
	return &VideoCollectProcessor{
		engine: newEngine("video_collect", &opt),
		video:  videoRenderer{format: opt.VideoFormat, posterPreview: opt.VideoPosterPreview},
	}
}

// Process consumes the upstream and returns the completion, partial on error.
func (p *VideoCollectProcessor) Process(ctx context.Context, upstream io.Reader) (*model.ChatCompletion, error) {
	err := p.run(ctx, upstream, p)
	return &model.ChatCompletion{
		Id:      p.responseID,
		Object:  model.ObjectChatCompletion,
		Created: p.b.created,
		Model:   p.b.model,
		Choices: []model.ChatCompletionChoice{{
			Index: 0,
			Message: model.ResponseMessage{
				Role:    model.RoleAssistant,
				Content: p.content,
			},
			FinishReason: model.FinishStop,
		}},
		Usage: model.Usage{},
	}, err
}

func (p *VideoCollectProcessor) handle(ctx context.Context, ev *Event) error {
	if ev.Kind != EventVideoProgress || !ev.Video.Done() {
		return nil
	}
	p.responseID = ev.ResponseID
	if content := p.video.render(ctx, &p.engine, ev.Video); content != "" {
		p.content = content
	}
	return nil
}

func (p *VideoCollectProcessor) finish(context.Context) error { return nil }
