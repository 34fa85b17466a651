// Package render writes server-sent event frames to gin responses.
package render

import (
	"io"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
)

// StringData writes one complete SSE frame and flushes it to the client.
func StringData(c *gin.Context, frame string) error {
	if _, err := io.WriteString(c.Writer, frame); err != nil {
		return errors.Wrap(err, "write sse frame")
	}
	c.Writer.Flush()
	return nil
}
