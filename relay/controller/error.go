package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Laisky/errors/v2"

	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
	"github.com/fuchsia74/grok-relay/relay/model"
)

// GeneralErrorResponse covers the error body shapes the upstream is known to
// answer with.
type GeneralErrorResponse struct {
	Error   model.Error `json:"error"`
	Message string      `json:"message"`
	Msg     string      `json:"msg"`
	Err     string      `json:"err"`
	Code    any         `json:"code"`
}

func (e GeneralErrorResponse) ToMessage() string {
	switch {
	case e.Error.Message != "":
		return e.Error.Message
	case e.Message != "":
		return e.Message
	case e.Msg != "":
		return e.Msg
	default:
		return e.Err
	}
}

// RelayErrorHandler converts a failed upstream call into the unified error
// model. Client errors keep their status; everything else is a bad gateway.
func RelayErrorHandler(err error) *model.ErrorWithStatusCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorWrapper(err, "upstream_timeout", http.StatusGatewayTimeout)
	}

	var upErr *grok.UpstreamError
	if !errors.As(err, &upErr) {
		return model.ErrorWrapper(err, "do_request_failed", http.StatusBadGateway)
	}

	status := upErr.StatusCode
	if status < 400 || status >= 500 {
		status = http.StatusBadGateway
	}
	result := &model.ErrorWithStatusCode{
		StatusCode: status,
		Error: model.Error{
			Type:     "upstream_error",
			Code:     "bad_response_status_code",
			Param:    strconv.Itoa(upErr.StatusCode),
			RawError: err,
		},
	}

	var errResponse GeneralErrorResponse
	if jsonErr := json.Unmarshal([]byte(upErr.Body), &errResponse); jsonErr != nil {
		result.Error.Message = upErr.Body
	} else {
		result.Error.Message = errResponse.ToMessage()
	}
	if result.Error.Message == "" {
		result.Error.Message = fmt.Sprintf("bad response status code %d", upErr.StatusCode)
	}
	return result
}
