package grok

import (
	"context"
	"io"
	"strings"

	"github.com/fuchsia74/grok-relay/relay/model"
)

// collectedImage is a final payload tagged with its position in the
// upstream generatedImageUrls list.
type collectedImage struct {
	index   int
	payload string
}

// imageCollector gathers the final payload of every generated image in
// upstream order, as URLs or as bare base64.
type imageCollector struct {
	format string
	images []collectedImage
}

func newImageCollector(format string) imageCollector {
	return imageCollector{format: model.NormalizeImageFormat(format)}
}

func (c *imageCollector) collect(ctx context.Context, b *Builder, urls []string) {
	for i, raw := range urls {
		if c.format == model.ImageFormatURL {
			if u := b.resolve(ctx, raw, MediaImage); u != "" {
				c.images = append(c.images, collectedImage{index: i, payload: u})
			}
			continue
		}
		if data := b.inline(ctx, raw, MediaImage); data != "" {
			c.images = append(c.images, collectedImage{index: i, payload: stripDataURI(data)})
		}
	}
}

func (c *imageCollector) payloads() []string {
	out := make([]string, 0, len(c.images))
	for _, img := range c.images {
		out = append(out, img.payload)
	}
	return out
}

// stripDataURI drops the "data:{mime};base64," prefix when present.
func stripDataURI(data string) string {
	if _, payload, ok := strings.Cut(data, ","); ok {
		return payload
	}
	return data
}

// ImageStreamProcessor emits OpenAI image generation stream events. The
// upstream renders two candidates for every requested image; for a single
// image one of them is picked at random and exposed as index 0.
type ImageStreamProcessor struct {
	engine
	images imageCollector
	field  string
	n      int
	// target is the candidate index kept when n == 1, -1 otherwise.
	target int
}

func NewImageStreamProcessor(opt Options, n int, responseFormat string) *ImageStreamProcessor {
	e := newEngine("image_stream", &opt)
	images := newImageCollector(responseFormat)
	target := -1
	if n == 1 {
		target = opt.Rand.Intn(2)
	}
	return &ImageStreamProcessor{
		engine: e,
		images: images,
		field:  model.ImageResponseField(images.format),
		n:      n,
		target: target,
	}
}

func (p *ImageStreamProcessor) Process(ctx context.Context, upstream io.Reader, w FrameWriter) error {
	p.w = w
	return p.run(ctx, upstream, p)
}

func (p *ImageStreamProcessor) handle(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case EventImageProgress:
		if p.n == 1 && ev.Image.Index != p.target {
			return nil
		}
		return p.emit(eventFrame(model.ImageEventPartial, map[string]any{
			"type":     model.ImageEventPartial,
			p.field:    "",
			"index":    p.outIndex(ev.Image.Index),
			"progress": ev.Image.Progress,
		}))
	case EventModelResponse:
		p.images.collect(ctx, p.b, ev.Model.GeneratedImageURLs)
	}
	return nil
}

func (p *ImageStreamProcessor) outIndex(index int) int {
	if p.n == 1 {
		return 0
	}
	return index
}

func (p *ImageStreamProcessor) finish(context.Context) error {
	usage := model.DefaultImageStreamUsage()
	for _, img := range p.images.images {
		if p.n == 1 && img.index != p.target {
			continue
		}
		if err := p.emit(eventFrame(model.ImageEventCompleted, map[string]any{
			"type":  model.ImageEventCompleted,
			p.field: img.payload,
			"index": p.outIndex(img.index),
			"usage": usage,
		})); err != nil {
			return err
		}
	}
	return nil
}

// ImageCollectProcessor returns every generated image as a URL or bare base64.
type ImageCollectProcessor struct {
	engine
	images imageCollector
}

func NewImageCollectProcessor(opt Options, responseFormat string) *ImageCollectProcessor {
	return &ImageCollectProcessor{
		engine: newEngine("image_collect", &opt),
		images: newImageCollector(responseFormat),
	}
}

// Process returns the images collected so far, also when err is non-nil.
func (p *ImageCollectProcessor) Process(ctx context.Context, upstream io.Reader) ([]string, error) {
	err := p.run(ctx, upstream, p)
	return p.images.payloads(), err
}

func (p *ImageCollectProcessor) handle(ctx context.Context, ev *Event) error {
	if ev.Kind == EventModelResponse {
		p.images.collect(ctx, p.b, ev.Model.GeneratedImageURLs)
	}
	return nil
}

func (p *ImageCollectProcessor) finish(context.Context) error { return nil }
