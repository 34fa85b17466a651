package grok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
)

const conversationPath = "/rest/app-chat/conversations/new"

// ConversationRequest is the body of a new upstream conversation.
type ConversationRequest struct {
	Temporary                 bool           `json:"temporary"`
	ModelName                 string         `json:"modelName"`
	ModelMode                 string         `json:"modelMode,omitempty"`
	Message                   string         `json:"message"`
	FileAttachments           []string       `json:"fileAttachments"`
	ImageAttachments          []string       `json:"imageAttachments"`
	DisableSearch             bool           `json:"disableSearch"`
	EnableImageGeneration     bool           `json:"enableImageGeneration"`
	ReturnImageBytes          bool           `json:"returnImageBytes"`
	EnableImageStreaming      bool           `json:"enableImageStreaming"`
	ImageGenerationCount      int            `json:"imageGenerationCount"`
	ForceConcise              bool           `json:"forceConcise"`
	ToolOverrides             map[string]any `json:"toolOverrides"`
	EnableSideBySide          bool           `json:"enableSideBySide"`
	SendFinalMetadata         bool           `json:"sendFinalMetadata"`
	IsReasoning               bool           `json:"isReasoning"`
	DisableTextFollowUps      bool           `json:"disableTextFollowUps"`
	DisableMemory             bool           `json:"disableMemory"`
	ReturnRawGrokInXaiRequest bool           `json:"returnRawGrokInXaiRequest"`
}

// NewConversationRequest builds the request for one prompt. Single image
// requests still ask for two candidates; the image processors pick one.
func NewConversationRequest(m ModelInfo, prompt string, imageCount int) ConversationRequest {
	req := ConversationRequest{
		Temporary:             true,
		ModelName:             m.GrokModel,
		ModelMode:             m.ModelMode,
		Message:               prompt,
		FileAttachments:       []string{},
		ImageAttachments:      []string{},
		EnableImageGeneration: true,
		EnableImageStreaming:  true,
		ImageGenerationCount:  2,
		ToolOverrides:         map[string]any{},
		EnableSideBySide:      true,
		SendFinalMetadata:     true,
		DisableTextFollowUps:  true,
		DisableMemory:         true,
	}
	switch m.Modality {
	case ModalityImage:
		req.ToolOverrides["imageGen"] = true
		if imageCount > 2 {
			req.ImageGenerationCount = imageCount
		}
	case ModalityVideo:
		req.EnableImageGeneration = false
		req.ToolOverrides["videoGen"] = true
	}
	return req
}

// UpstreamError is a non-2xx answer of the conversation endpoint.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Client posts conversations to the upstream web API.
type Client struct {
	baseURL string
	hc      *http.Client
	lg      glog.Logger
}

func NewClient(baseURL string, hc *http.Client, lg glog.Logger) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), hc: hc, lg: lg}
}

// Conversation starts a conversation and returns the NDJSON response body.
// The caller must close it.
func (c *Client) Conversation(ctx context.Context, token string, body ConversationRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal conversation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+conversationPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "new conversation request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", "https://grok.com")
	req.Header.Set("Referer", "https://grok.com/")
	if token = strings.TrimPrefix(strings.TrimSpace(token), "sso="); token != "" {
		req.Header.Set("Cookie", "sso="+token+"; sso-rw="+token)
	}

	c.lg.Debug("sending conversation to upstream",
		zap.String("model", body.ModelName),
		zap.String("mode", body.ModelMode),
		zap.Int("prompt_len", len(body.Message)))

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do conversation request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.WithStack(&UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		})
	}
	return resp.Body, nil
}
