package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/logger"
	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
	rcontroller "github.com/fuchsia74/grok-relay/relay/controller"
)

// fakeUpstream replays canned NDJSON and records what it was asked.
type fakeUpstream struct {
	mu     sync.Mutex
	lines  []string
	err    error
	tokens []string
	bodies []grok.ConversationRequest
}

func (f *fakeUpstream) Conversation(_ context.Context, token string, body grok.ConversationRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}

	var sb strings.Builder
	for _, l := range f.lines {
		sb.WriteString(`{"result":{"response":` + l + "}}\n")
	}
	return io.NopCloser(strings.NewReader(sb.String())), nil
}

type fakeMaterializer struct{}

func (fakeMaterializer) Download(context.Context, string, string, grok.MediaKind) error { return nil }
func (fakeMaterializer) ToBase64(context.Context, string, string, grok.MediaKind) (string, error) {
	return "data:image/png;base64,QUJD", nil
}
func (fakeMaterializer) Close() error { return nil }

func setupRelay(t *testing.T, up *fakeUpstream) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	originalAppURL := config.AppURL
	originalImageFormat := config.ImageFormat
	t.Cleanup(func() {
		config.AppURL = originalAppURL
		config.ImageFormat = originalImageFormat
		rcontroller.Setup(nil, nil)
	})
	config.AppURL = "https://relay.example.com"
	config.ImageFormat = "url"
	rcontroller.Setup(up, func() grok.Materializer { return fakeMaterializer{} })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		gmw.SetLogger(c, logger.Logger)
		c.Next()
	})
	r.POST("/v1/chat/completions", Relay)
	r.POST("/v1/images/generations", Relay)
	r.GET("/v1/models", ListModels)
	r.GET("/v1/models/:model", RetrieveModel)
	r.GET("/api/status", GetStatus)
	r.NoRoute(RelayNotFound)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer sso-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sseData(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			out = append(out, data)
		}
	}
	return out
}

func TestRelayChatCollect(t *testing.T) {
	up := &fakeUpstream{lines: []string{
		`{"responseId":"resp-1","token":"Hel","isThinking":false}`,
		`{"token":"lo","isThinking":false}`,
		`{"modelResponse":{"responseId":"resp-1","message":"Hello"}}`,
	}}
	r := setupRelay(t, up)

	rec := do(r, http.MethodPost, "/v1/chat/completions",
		`{"model":"grok-4","messages":[{"role":"user","content":"hi"}],"temperature":0.3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Object  string `json:"object"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "chat.completion", resp.Object)
	require.Equal(t, "grok-4", resp.Model)
	require.Equal(t, "Hello", resp.Choices[0].Message.Content)

	require.Equal(t, []string{"sso-token"}, up.tokens)
	require.Equal(t, "hi", up.bodies[0].Message)
	require.Equal(t, "MODEL_MODE_GROK_4", up.bodies[0].ModelMode)
}

func TestRelayChatStream(t *testing.T) {
	up := &fakeUpstream{lines: []string{
		`{"token":"plan","isThinking":true}`,
		`{"token":"Hi","isThinking":false}`,
	}}
	r := setupRelay(t, up)

	rec := do(r, http.MethodPost, "/v1/chat/completions?thinking=1",
		`{"model":"grok-4","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	data := sseData(t, rec.Body.String())
	require.Equal(t, "[DONE]", data[len(data)-1])
	body := strings.Join(data, "\n")
	require.Contains(t, body, `"role":"assistant"`)
	require.Contains(t, body, "<think>")
	require.Contains(t, body, `"content":"Hi"`)
}

func TestRelayVideoCollect(t *testing.T) {
	up := &fakeUpstream{lines: []string{
		`{"responseId":"vid-1","streamingVideoGenerationResponse":{"progress":100,"videoUrl":"users/u/v/video.mp4"}}`,
	}}
	r := setupRelay(t, up)

	rec := do(r, http.MethodPost, "/v1/chat/completions",
		`{"model":"grok-imagine-1.0-video","messages":[{"role":"user","content":"a cat"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "https://relay.example.com/v1/files/video/users/u/v/video.mp4")
	require.Equal(t, true, up.bodies[0].ToolOverrides["videoGen"])
}

func TestRelayChatErrors(t *testing.T) {
	t.Run("unknown model", func(t *testing.T) {
		r := setupRelay(t, &fakeUpstream{})
		rec := do(r, http.MethodPost, "/v1/chat/completions", `{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "model_not_found")
	})

	t.Run("missing messages", func(t *testing.T) {
		r := setupRelay(t, &fakeUpstream{})
		rec := do(r, http.MethodPost, "/v1/chat/completions", `{"model":"grok-4"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_text_request")
	})

	t.Run("missing token", func(t *testing.T) {
		r := setupRelay(t, &fakeUpstream{})
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
			strings.NewReader(`{"model":"grok-4","messages":[{"role":"user","content":"hi"}]}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("upstream rejects before first frame", func(t *testing.T) {
		r := setupRelay(t, &fakeUpstream{err: &grok.UpstreamError{StatusCode: 403, Body: `{"error":{"message":"blocked"}}`}})
		rec := do(r, http.MethodPost, "/v1/chat/completions",
			`{"model":"grok-4","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Body.String(), "blocked")
		require.NotEqual(t, "text/event-stream", rec.Header().Get("Content-Type"))
	})

	t.Run("image model on chat endpoint", func(t *testing.T) {
		r := setupRelay(t, &fakeUpstream{})
		rec := do(r, http.MethodPost, "/v1/chat/completions",
			`{"model":"grok-imagine-1.0","messages":[{"role":"user","content":"hi"}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_model_for_endpoint")
	})
}

func TestRelayImageCollect(t *testing.T) {
	up := &fakeUpstream{lines: []string{
		`{"streamingImageGenerationResponse":{"imageIndex":0,"progress":50}}`,
		`{"modelResponse":{"generatedImageUrls":["users/u/a/content","users/u/b/content"]}}`,
	}}
	r := setupRelay(t, up)

	rec := do(r, http.MethodPost, "/v1/images/generations", `{"prompt":"a cat","n":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Created int64            `json:"created"`
		Data    []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.Created)
	require.Len(t, resp.Data, 2)
	require.Equal(t, "QUJD", resp.Data[0]["b64_json"])
	require.Equal(t, 2, up.bodies[0].ImageGenerationCount)
	require.Equal(t, true, up.bodies[0].ToolOverrides["imageGen"])
}

func TestRelayImageURLFormat(t *testing.T) {
	up := &fakeUpstream{lines: []string{
		`{"modelResponse":{"generatedImageUrls":["users/u/a/content","users/u/b/content"]}}`,
	}}
	r := setupRelay(t, up)

	rec := do(r, http.MethodPost, "/v1/images/generations", `{"prompt":"a cat","response_format":"url"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"url":"https://relay.example.com/v1/files/image/users/u/a/content"`)
	require.NotContains(t, rec.Body.String(), "users/u/b/content")
}

func TestRelayImageFormatNormalized(t *testing.T) {
	up := &fakeUpstream{lines: []string{
		`{"modelResponse":{"generatedImageUrls":["users/u/a/content"]}}`,
	}}
	r := setupRelay(t, up)

	rec := do(r, http.MethodPost, "/v1/images/generations", `{"prompt":"a cat","response_format":" URL "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"url":"https://relay.example.com/v1/files/image/users/u/a/content"`)

	rec = do(r, http.MethodPost, "/v1/images/generations", `{"prompt":"a cat","response_format":"png"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"b64_json":"QUJD"`)
}

func TestRelayImageStream(t *testing.T) {
	up := &fakeUpstream{lines: []string{
		`{"streamingImageGenerationResponse":{"imageIndex":0,"progress":50}}`,
		`{"streamingImageGenerationResponse":{"imageIndex":1,"progress":50}}`,
		`{"modelResponse":{"generatedImageUrls":["users/u/a/content","users/u/b/content"]}}`,
	}}
	r := setupRelay(t, up)

	rec := do(r, http.MethodPost, "/v1/images/generations", `{"prompt":"a cat","n":2,"stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "event: image_generation.partial_image")
	require.Contains(t, rec.Body.String(), "event: image_generation.completed")
}

func TestRelayImageValidation(t *testing.T) {
	r := setupRelay(t, &fakeUpstream{})
	for _, body := range []string{
		`{"prompt":"","n":1}`,
		`{"prompt":"a cat","n":11}`,
	} {
		rec := do(r, http.MethodPost, "/v1/images/generations", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Contains(t, rec.Body.String(), "invalid_image_request")
	}

	rec := do(r, http.MethodPost, "/v1/images/generations", `{"prompt":"a cat","model":"grok-4"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelsEndpoints(t *testing.T) {
	r := setupRelay(t, &fakeUpstream{})

	rec := do(r, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list OpenAIModelList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, "list", list.Object)
	require.Len(t, list.Data, len(grok.ModelList()))

	rec = do(r, http.MethodGet, "/v1/models/grok-4.20-beta", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"display_name":"Grok 4.20 Beta"`)

	rec = do(r, http.MethodGet, "/v1/models/gpt-4", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "model_not_found")
}

func TestStatusAndNotFound(t *testing.T) {
	r := setupRelay(t, &fakeUpstream{})

	rec := do(r, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)

	rec = do(r, http.MethodGet, "/v1/embeddings", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid URL (GET /v1/embeddings)")
}
