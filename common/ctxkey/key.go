package ctxkey

import "github.com/gin-gonic/gin"

const (
	// RequestId is the per-request identifier, also echoed as a response header.
	// Set in: middleware.RequestId.
	RequestId = "X-Grok-Relay-Request-Id"

	// KeyRequestBody caches the raw request body bytes for reuse.
	// Set in: common.GetRequestBody and common.UnmarshalBodyReusable.
	KeyRequestBody = gin.BodyBytesKey

	// RequestModel is the model named in the request body.
	// Set in: relay/controller after decoding; read by the panic recovery log.
	RequestModel = "request_model"
)
