package common

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common/ctxkey"
)

// maxRequestBodySize bounds request bodies read into memory.
const maxRequestBodySize = 16 << 20

// GetRequestBody reads the request body once and caches it on the context.
func GetRequestBody(c *gin.Context) ([]byte, error) {
	if cached, ok := c.Get(ctxkey.KeyRequestBody); ok {
		if body, ok := cached.([]byte); ok {
			return body, nil
		}
	}
	if c.Request == nil || c.Request.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodySize+1))
	_ = c.Request.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, "read request body")
	}
	if len(body) > maxRequestBodySize {
		return nil, errors.Errorf("request body exceeds %d bytes", maxRequestBodySize)
	}
	c.Set(ctxkey.KeyRequestBody, body)
	return body, nil
}

// UnmarshalBodyReusable decodes the JSON body into v and restores the body
// so later handlers can read it again.
func UnmarshalBodyReusable(c *gin.Context, v any) error {
	body, err := GetRequestBody(c)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}

// SetEventStreamHeaders prepares the response for server-sent events.
func SetEventStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}
