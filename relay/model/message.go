package model

import "strings"

const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

// GeneralOpenAIRequest is the subset of the chat completions request the relay honours.
type GeneralOpenAIRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
	User     string    `json:"user,omitempty"`
}

// Message is a chat message whose content is either a string or a list of parts.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

type MessageContent struct {
	Type     string    `json:"type,omitempty"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	Url    string `json:"url,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ParseContent normalizes Content into typed parts. Unknown part types are skipped.
func (m Message) ParseContent() []MessageContent {
	var parts []MessageContent
	switch content := m.Content.(type) {
	case string:
		if content != "" {
			parts = append(parts, MessageContent{Type: ContentTypeText, Text: content})
		}
	case []any:
		for _, raw := range content {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			switch item["type"] {
			case ContentTypeText:
				if text, ok := item["text"].(string); ok {
					parts = append(parts, MessageContent{Type: ContentTypeText, Text: text})
				}
			case ContentTypeImageURL:
				switch img := item["image_url"].(type) {
				case string:
					parts = append(parts, MessageContent{Type: ContentTypeImageURL, ImageURL: &ImageURL{Url: img}})
				case map[string]any:
					u, _ := img["url"].(string)
					detail, _ := img["detail"].(string)
					parts = append(parts, MessageContent{Type: ContentTypeImageURL, ImageURL: &ImageURL{Url: u, Detail: detail}})
				}
			}
		}
	}
	return parts
}

// StringContent joins the text parts of the message.
func (m Message) StringContent() string {
	if s, ok := m.Content.(string); ok {
		return s
	}
	var texts []string
	for _, part := range m.ParseContent() {
		if part.Type == ContentTypeText {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
