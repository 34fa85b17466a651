package helper

import (
	gutils "github.com/Laisky/go-utils/v5"
)

// GenRequestID returns a time ordered request id.
func GenRequestID() string {
	return gutils.UUID7()
}
