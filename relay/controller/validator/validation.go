// Package validator checks relay requests before any upstream call is made.
package validator

import (
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/fuchsia74/grok-relay/relay/model"
)

const (
	MinImageCount = 1
	MaxImageCount = 10
)

func ValidateTextRequest(req *model.GeneralOpenAIRequest) error {
	if req.Model == "" {
		return errors.New("model is required")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages is required")
	}
	for i, msg := range req.Messages {
		if msg.Role == "" {
			return errors.Errorf("messages[%d].role is required", i)
		}
	}
	return nil
}

func ValidateImageRequest(req *model.ImageRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if req.N < MinImageCount || req.N > MaxImageCount {
		return errors.Errorf("n must be between %d and %d", MinImageCount, MaxImageCount)
	}
	switch req.ResponseFormat {
	case model.ImageFormatURL, model.ImageFormatBase64, model.ImageFormatB64JSON:
	default:
		return errors.Errorf("unsupported response_format %q", req.ResponseFormat)
	}
	return nil
}
