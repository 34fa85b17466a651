package grok

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/stretchr/testify/require"

	"github.com/fuchsia74/grok-relay/common/random"
)

// fakeMaterializer records every call and serves canned payloads.
type fakeMaterializer struct {
	mu          sync.Mutex
	downloads   []string
	inlined     []string
	closed      int
	downloadErr error
	inlineErr   error
	// inline maps a reference to its data URI; missing entries inline to "".
	inline map[string]string
}

func (f *fakeMaterializer) Download(_ context.Context, path, _ string, kind MediaKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed > 0 {
		return errors.New("materializer closed")
	}
	f.downloads = append(f.downloads, string(kind)+path)
	return f.downloadErr
}

func (f *fakeMaterializer) ToBase64(_ context.Context, pathOrURL, _ string, _ MediaKind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed > 0 {
		return "", errors.New("materializer closed")
	}
	f.inlined = append(f.inlined, pathOrURL)
	if f.inlineErr != nil {
		return "", f.inlineErr
	}
	return f.inline[pathOrURL], nil
}

func (f *fakeMaterializer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeMaterializer) opener() MaterializerOpener {
	return func() Materializer { return f }
}

// frameRecorder collects frames and can fail after a number of writes.
type frameRecorder struct {
	frames  []string
	failAt  int
	failErr error
}

func (r *frameRecorder) WriteFrame(frame string) error {
	if r.failErr != nil && len(r.frames) == r.failAt {
		return r.failErr
	}
	r.frames = append(r.frames, frame)
	return nil
}

func testOptions(t *testing.T, m *fakeMaterializer) Options {
	t.Helper()
	lg, err := glog.NewConsoleWithName("grok-test", glog.LevelDebug)
	require.NoError(t, err)

	return Options{
		Model:            "grok-4",
		Token:            "sso-token",
		AppURL:           "https://relay.example.com/",
		ShowToolCalls:    true,
		FilterTags:       []string{"xaiartifact", "xai:tool_usage_card", "grok:render"},
		ImageFormat:      "url",
		VideoFormat:      "html",
		OpenMaterializer: m.opener(),
		Rand:             random.SourceFunc(func(int) int { return 0 }),
		Logger:           lg,
		Now:              func() time.Time { return time.Unix(1700000000, 0) },
	}
}

// upstream joins NDJSON lines wrapped in the result.response envelope.
// Literal line breaks inside a response are layout only and removed.
func upstream(responses ...string) *strings.Reader {
	compact := strings.NewReplacer("\n", "", "\t", "")
	var sb strings.Builder
	for _, r := range responses {
		sb.WriteString(`{"result":{"response":` + compact.Replace(r) + "}}\n")
	}
	return strings.NewReader(sb.String())
}

type chunkFrame struct {
	ID                string `json:"id"`
	Object            string `json:"object"`
	Created           int64  `json:"created"`
	Model             string `json:"model"`
	SystemFingerprint string `json:"system_fingerprint"`
	Choices           []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func parseChunk(t *testing.T, frame string) chunkFrame {
	t.Helper()
	require.True(t, strings.HasPrefix(frame, "data: "), frame)
	require.True(t, strings.HasSuffix(frame, "\n\n"), frame)

	var c chunkFrame
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")), &c))
	require.Len(t, c.Choices, 1)
	return c
}

// contents returns the content deltas of chat chunk frames, skipping the
// role and stop chunks and the terminal [DONE] frame.
func contents(t *testing.T, frames []string) []string {
	t.Helper()
	var out []string
	for _, f := range frames {
		if f == Done {
			continue
		}
		c := parseChunk(t, f)
		choice := c.Choices[0]
		if choice.Delta.Role != "" || choice.FinishReason != nil || choice.Delta.Content == nil {
			continue
		}
		out = append(out, *choice.Delta.Content)
	}
	return out
}

func requireStreamEnvelope(t *testing.T, frames []string) {
	t.Helper()
	require.GreaterOrEqual(t, len(frames), 3)

	role := parseChunk(t, frames[0])
	require.Equal(t, "assistant", role.Choices[0].Delta.Role)
	require.NotNil(t, role.Choices[0].Delta.Content)
	require.Equal(t, "", *role.Choices[0].Delta.Content)

	stop := parseChunk(t, frames[len(frames)-2])
	require.NotNil(t, stop.Choices[0].FinishReason)
	require.Equal(t, "stop", *stop.Choices[0].FinishReason)
	require.Nil(t, stop.Choices[0].Delta.Content)

	require.Equal(t, Done, frames[len(frames)-1])
}

// requireBalancedMarkers checks that think markers alternate open/close and
// end closed.
func requireBalancedMarkers(t *testing.T, parts []string) {
	t.Helper()
	open := false
	for _, p := range parts {
		switch p {
		case ThinkOpenMarker:
			require.False(t, open, "nested open marker")
			open = true
		case ThinkCloseMarker:
			require.True(t, open, "close without open")
			open = false
		}
	}
	require.False(t, open, "marker left open")
}
