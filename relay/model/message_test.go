package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseContent_ImageDetailPreserved(t *testing.T) {
	m := Message{
		Role: "user",
		Content: []any{
			map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url":    "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAAB",
					"detail": "low",
				},
			},
		},
	}

	parts := m.ParseContent()
	require.Len(t, parts, 1)
	require.NotNil(t, parts[0].ImageURL)
	require.Equal(t, "low", parts[0].ImageURL.Detail)
}

func TestStringContentJoinsTextParts(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{
		"role": "user",
		"content": [
			{"type": "text", "text": "first"},
			{"type": "image_url", "image_url": "https://example.com/a.png"},
			{"type": "text", "text": "second"}
		]
	}`), &m))

	require.Equal(t, "first\nsecond", m.StringContent())
	require.Equal(t, "plain", Message{Role: "user", Content: "plain"}.StringContent())
	require.Empty(t, Message{Role: "user"}.StringContent())
}

func TestChatCompletionJSONShape(t *testing.T) {
	fp := "fp_1"
	annotations := []any{}
	resp := ChatCompletion{
		Id:                "resp-1",
		Object:            ObjectChatCompletion,
		Model:             "grok-4",
		SystemFingerprint: &fp,
		Choices: []ChatCompletionChoice{{
			Message:      ResponseMessage{Role: RoleAssistant, Content: "hi", Annotations: &annotations},
			FinishReason: FinishStop,
		}},
		Usage: ZeroUsageWithDetails(),
	}

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": "resp-1",
		"object": "chat.completion",
		"created": 0,
		"model": "grok-4",
		"system_fingerprint": "fp_1",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": "hi", "refusal": null, "annotations": []},
			"finish_reason": "stop"
		}],
		"usage": {
			"prompt_tokens": 0, "completion_tokens": 0, "total_tokens": 0,
			"prompt_tokens_details": {"cached_tokens": 0, "text_tokens": 0, "audio_tokens": 0, "image_tokens": 0},
			"completion_tokens_details": {"text_tokens": 0, "audio_tokens": 0, "reasoning_tokens": 0}
		}
	}`, string(raw))
}

func TestImageResponseField(t *testing.T) {
	require.Equal(t, "url", ImageResponseField("url"))
	require.Equal(t, "base64", ImageResponseField("base64"))
	require.Equal(t, "b64_json", ImageResponseField("b64_json"))
	require.Equal(t, "b64_json", ImageResponseField("png"))
}
