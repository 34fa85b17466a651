package model

import "strings"

const (
	ImageEventPartial   = "image_generation.partial_image"
	ImageEventCompleted = "image_generation.completed"

	ImageFormatURL     = "url"
	ImageFormatBase64  = "base64"
	ImageFormatB64JSON = "b64_json"
)

// ImageRequest is the OpenAI image generation request body.
type ImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
	User           string `json:"user,omitempty"`
}

// NormalizeImageFormat lowercases a requested response_format. Empty and
// unknown values become b64_json.
func NormalizeImageFormat(format string) string {
	switch format = strings.ToLower(strings.TrimSpace(format)); format {
	case ImageFormatURL, ImageFormatBase64, ImageFormatB64JSON:
		return format
	default:
		return ImageFormatB64JSON
	}
}

// ImageResponseField maps a requested response_format to the JSON field
// carrying the image payload. Unknown formats fall back to b64_json.
func ImageResponseField(format string) string {
	switch format {
	case ImageFormatURL:
		return "url"
	case ImageFormatBase64:
		return "base64"
	default:
		return "b64_json"
	}
}

// ImageStreamUsage is the synthetic usage block attached to completed image events.
type ImageStreamUsage struct {
	TotalTokens        int                     `json:"total_tokens"`
	InputTokens        int                     `json:"input_tokens"`
	OutputTokens       int                     `json:"output_tokens"`
	InputTokensDetails ImageInputTokensDetails `json:"input_tokens_details"`
}

type ImageInputTokensDetails struct {
	TextTokens  int `json:"text_tokens"`
	ImageTokens int `json:"image_tokens"`
}

// DefaultImageStreamUsage is reported for every completed image; the upstream
// does not meter image generation.
func DefaultImageStreamUsage() ImageStreamUsage {
	return ImageStreamUsage{
		TotalTokens:  50,
		InputTokens:  25,
		OutputTokens: 25,
		InputTokensDetails: ImageInputTokensDetails{
			TextTokens:  5,
			ImageTokens: 20,
		},
	}
}

// ImageResponse is the non-streaming image generation response. Each data
// entry holds a single key named after the response format.
type ImageResponse struct {
	Created int64            `json:"created"`
	Data    []map[string]any `json:"data"`
}
