package grok

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fuchsia74/grok-relay/relay/model"
)

// ChatStreamProcessor translates one upstream chat response into OpenAI
// chat.completion.chunk frames. A processor handles exactly one response.
type ChatStreamProcessor struct {
	engine
	think         thinkingState
	filterTags    []string
	showToolCalls bool
	imageFormat   string
	roleSent      bool

	// legacy tool-call run being accumulated
	toolTag string
	toolBuf strings.Builder
}

func NewChatStreamProcessor(opt Options) *ChatStreamProcessor {
	return &ChatStreamProcessor{
		engine:        newEngine("chat_stream", &opt),
		think:         thinkingState{show: opt.ShowThinking},
		filterTags:    opt.FilterTags,
		showToolCalls: opt.ShowToolCalls,
		imageFormat:   opt.ImageFormat,
	}
}

// Process streams frames to w until the upstream ends. Upstream read errors,
// write errors and cancellation are returned; frames already written stay
// delivered and no stop chunk follows them.
func (p *ChatStreamProcessor) Process(ctx context.Context, upstream io.Reader, w FrameWriter) error {
	p.w = w
	return p.run(ctx, upstream, p)
}

func (p *ChatStreamProcessor) handle(ctx context.Context, ev *Event) error {
	if !p.roleSent {
		if err := p.emit(p.b.RoleChunk()); err != nil {
			return err
		}
		p.roleSent = true
	}

	prefix := rolloutPrefix(ev.RolloutID)
	switch ev.Kind {
	case EventImageProgress:
		if !p.think.show {
			return nil
		}
		if err := p.openThink(); err != nil {
			return err
		}
		return p.emitChunk(fmt.Sprintf("正在生成第%d张图片中，当前进度%s%%\n",
			ev.Image.Index+1, formatProgress(ev.Image.Progress)))
	case EventModelResponse:
		return p.handleModelResponse(ctx, ev)
	case EventFunctionCall:
		if !p.think.show {
			return nil
		}
		if err := p.openThink(); err != nil {
			return err
		}
		if text := formatFunctionCall(prefix, ev.Function); text != "" {
			return p.emitChunk(text)
		}
	case EventToolResult:
		if !p.think.show {
			return nil
		}
		if err := p.openThink(); err != nil {
			return err
		}
		for _, line := range formatToolResult(prefix, ev) {
			if err := p.emitChunk(line); err != nil {
				return err
			}
		}
	case EventToken:
		return p.handleToken(ev, prefix)
	}
	return nil
}

func (p *ChatStreamProcessor) handleModelResponse(ctx context.Context, ev *Event) error {
	if p.think.open {
		if ev.Model.Message != "" {
			if err := p.emitChunk(ev.Model.Message + "\n"); err != nil {
				return err
			}
		}
		if err := p.closeThink(); err != nil {
			return err
		}
	}

	for _, raw := range ev.Model.GeneratedImageURLs {
		if md := p.b.imageMarkdown(ctx, raw, p.imageFormat); md != "" {
			if err := p.emitChunk(md); err != nil {
				return err
			}
		}
	}

	if ev.Model.ModelHash != "" {
		p.b.fingerprint = ev.Model.ModelHash
	}
	return nil
}

// handleToken filters one token delta, in order: tool buffering, post-finish
// suppression, thinking transitions, search result inlining, filter tags and
// the thinking visibility gate.
func (p *ChatStreamProcessor) handleToken(ev *Event, prefix string) error {
	token := ev.Token
	if token == "" {
		return nil
	}

	if p.toolTag != "" && ev.MessageTag != p.toolTag {
		if err := p.flushTool(); err != nil {
			return err
		}
	}
	if ev.MessageTag == TagFunctionCall || ev.MessageTag == TagRawFunctionResult {
		if p.showToolCalls {
			p.toolTag = ev.MessageTag
			p.toolBuf.WriteString(token)
		}
		return nil
	}

	marker, drop := p.think.observe(ev.IsThinking)
	if drop {
		return nil
	}
	if marker != "" {
		if err := p.emitChunk(marker); err != nil {
			return err
		}
	}

	if ev.ToolUsageCardID != "" && ev.HasSearchResults {
		if !ev.IsThinking || !p.think.show {
			return nil
		}
		token += renderSearchResults(ev.SearchResults)
	}

	for _, tag := range p.filterTags {
		if tag != "" && strings.Contains(token, tag) {
			return nil
		}
	}

	if ev.IsThinking {
		if !p.think.show {
			return nil
		}
		token = prefix + token
	}
	return p.emitChunk(token)
}

func (p *ChatStreamProcessor) flushTool() error {
	formatted := FormatToolCall(p.toolTag, p.toolBuf.String())
	p.toolTag = ""
	p.toolBuf.Reset()
	if formatted == "" || !p.showToolCalls {
		return nil
	}
	return p.emitChunk(formatted)
}

func (p *ChatStreamProcessor) finish(context.Context) error {
	if p.toolTag != "" && p.toolBuf.Len() > 0 {
		if err := p.flushTool(); err != nil {
			return err
		}
	}
	if err := p.closeThink(); err != nil {
		return err
	}
	if err := p.emit(p.b.StopChunk()); err != nil {
		return err
	}
	return p.emit(Done)
}

func (p *ChatStreamProcessor) openThink() error {
	if marker, ok := p.think.openMarker(); ok {
		return p.emitChunk(marker)
	}
	return nil
}

func (p *ChatStreamProcessor) closeThink() error {
	if marker, ok := p.think.closeMarker(); ok {
		return p.emitChunk(marker)
	}
	return nil
}

// ChatCollectProcessor aggregates one upstream chat response into a single
// chat.completion document.
type ChatCollectProcessor struct {
	engine
	imageFormat string
	responseID  string
	content     string
}

func NewChatCollectProcessor(opt Options) *ChatCollectProcessor {
	return &ChatCollectProcessor{
		engine:      newEngine("chat_collect", &opt),
		imageFormat: opt.ImageFormat,
	}
}

// Process consumes the upstream and returns the completion. On error the
// completion assembled so far is returned alongside it.
func (p *ChatCollectProcessor) Process(ctx context.Context, upstream io.Reader) (*model.ChatCompletion, error) {
	err := p.run(ctx, upstream, p)
	return p.completion(), err
}

func (p *ChatCollectProcessor) handle(ctx context.Context, ev *Event) error {
	if ev.Kind != EventModelResponse {
		return nil
	}

	p.responseID = ev.Model.ResponseID
	content := ev.Model.Message
	if len(ev.Model.GeneratedImageURLs) > 0 {
		content += "\n"
		for _, raw := range ev.Model.GeneratedImageURLs {
			content += p.b.imageMarkdown(ctx, raw, p.imageFormat)
		}
	}
	p.content = content

	if ev.Model.ModelHash != "" {
		p.b.fingerprint = ev.Model.ModelHash
	}
	return nil
}

func (p *ChatCollectProcessor) finish(context.Context) error { return nil }

func (p *ChatCollectProcessor) completion() *model.ChatCompletion {
	fingerprint := p.b.fingerprint
	annotations := []any{}
	return &model.ChatCompletion{
		Id:                p.responseID,
		Object:            model.ObjectChatCompletion,
		Created:           p.b.created,
		Model:             p.b.model,
		SystemFingerprint: &fingerprint,
		Choices: []model.ChatCompletionChoice{{
			Index: 0,
			Message: model.ResponseMessage{
				Role:        model.RoleAssistant,
				Content:     p.content,
				Annotations: &annotations,
			},
			FinishReason: model.FinishStop,
		}},
		Usage: model.ZeroUsageWithDetails(),
	}
}

func formatProgress(progress float64) string {
	return strconv.FormatFloat(progress, 'f', -1, 64)
}
