package grok

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"

	"github.com/fuchsia74/grok-relay/common/logger"
	"github.com/fuchsia74/grok-relay/common/random"
	"github.com/fuchsia74/grok-relay/monitor"
)

// maxLineSize bounds a single upstream NDJSON line.
const maxLineSize = 1024 * 1024

// strategy renders decoded events for one modality and output shape.
type strategy interface {
	handle(ctx context.Context, ev *Event) error
	// finish runs once after the upstream ended cleanly.
	finish(ctx context.Context) error
}

// engine drives a strategy over an upstream NDJSON body. It owns the shared
// response identity and releases the materializer when the run ends.
type engine struct {
	name string
	b    *Builder
	lg   glog.Logger
	w    FrameWriter
}

func newEngine(name string, opt *Options) engine {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Rand == nil {
		opt.Rand = random.CryptoSource
	}
	lg := opt.Logger
	if lg == nil {
		lg = logger.Logger
	}
	lg = lg.Named(name).With(zap.String("model", opt.Model))

	return engine{
		name: name,
		b:    newBuilder(*opt, lg),
		lg:   lg,
	}
}

func (e *engine) run(ctx context.Context, upstream io.Reader, s strategy) (err error) {
	start := time.Now()
	defer func() {
		if cerr := e.b.Close(); cerr != nil {
			e.lg.Warn("release materializer", zap.Error(cerr))
		}
		monitor.ObserveProcessorRun(e.name, err, time.Since(start))
	}()

	reader := bufio.NewReaderSize(upstream, 64*1024)
	var buf []byte
	for {
		line, oversized, rerr := readLine(reader, buf[:0])
		buf = line

		if oversized || len(line) > 0 {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "upstream processing cancelled")
			}
			if err := e.handleLine(ctx, s, line, oversized); err != nil {
				return err
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrap(rerr, "read upstream stream")
		}
	}

	return s.finish(ctx)
}

func (e *engine) handleLine(ctx context.Context, s strategy, line []byte, oversized bool) error {
	if oversized {
		monitor.RecordDroppedLine(e.name)
		e.lg.Warn("skip oversized upstream line", zap.Int("limit", maxLineSize))
		return nil
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	ev, ok := DecodeEvent(line)
	if !ok {
		monitor.RecordDroppedLine(e.name)
		e.lg.Debug("skip undecodable upstream line", zap.ByteString("line", line))
		return nil
	}
	monitor.RecordUpstreamEvent(e.name, ev.Kind.String())

	e.b.observe(ev)
	return s.handle(ctx, ev)
}

// readLine appends the next newline-terminated line to buf. A line longer
// than maxLineSize is consumed up to its newline and reported as oversized
// with no content.
func readLine(r *bufio.Reader, buf []byte) (line []byte, oversized bool, err error) {
	for {
		chunk, rerr := r.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > maxLineSize+1 {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		return buf, oversized, rerr
	}
}

func (e *engine) emit(frame string) error {
	if e.w == nil {
		return errors.New("frame writer not set")
	}
	if err := e.w.WriteFrame(frame); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

func (e *engine) emitChunk(content string) error {
	return e.emit(e.b.Chunk(content))
}
