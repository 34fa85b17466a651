package relaymode

import "strings"

const (
	Unknown = iota
	ChatCompletions
	ImagesGenerations
)

// GetByPath maps an OpenAI API path onto the relay mode serving it.
func GetByPath(path string) int {
	switch {
	case strings.HasPrefix(path, "/v1/chat/completions"):
		return ChatCompletions
	case strings.HasPrefix(path, "/v1/images/generations"):
		return ImagesGenerations
	default:
		return Unknown
	}
}

// String names the mode for logs and metric labels.
func String(mode int) string {
	switch mode {
	case ChatCompletions:
		return "chat_completions"
	case ImagesGenerations:
		return "images_generations"
	default:
		return "unknown"
	}
}
