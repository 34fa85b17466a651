package controller

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common"
	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/ctxkey"
	"github.com/fuchsia74/grok-relay/common/render"
	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
	"github.com/fuchsia74/grok-relay/relay/controller/validator"
	relaymodel "github.com/fuchsia74/grok-relay/relay/model"
)

// Upstream starts conversations against the Grok web API.
type Upstream interface {
	Conversation(ctx context.Context, token string, body grok.ConversationRequest) (io.ReadCloser, error)
}

var (
	upstream         Upstream
	openMaterializer grok.MaterializerOpener
)

// Setup wires the upstream client and the asset materializer used by every
// relay handler. It must be called before the router starts serving.
func Setup(u Upstream, opener grok.MaterializerOpener) {
	upstream = u
	openMaterializer = opener
}

func getAndValidateTextRequest(c *gin.Context) (*relaymodel.GeneralOpenAIRequest, error) {
	body, err := common.GetRequestBody(c)
	if err != nil {
		return nil, errors.Wrap(err, "get request body")
	}

	textRequest := &relaymodel.GeneralOpenAIRequest{}
	if err = common.UnmarshalBodyReusable(c, textRequest); err != nil {
		return nil, errors.Wrap(err, "unmarshal request body")
	}
	if err = validator.ValidateTextRequest(textRequest); err != nil {
		return nil, errors.Wrap(err, "text request validation failed")
	}
	logIgnoredParameters(c, body, relaymodel.GeneralOpenAIRequest{})
	return textRequest, nil
}

func logIgnoredParameters(c *gin.Context, body []byte, request any) {
	if ignored := validator.IgnoredParameters(body, request); len(ignored) > 0 {
		gmw.GetLogger(c).Debug("request parameters ignored", zap.Strings("params", ignored))
	}
}

// flattenMessages renders the conversation into the single prompt the
// upstream accepts. A lone user message is sent verbatim.
func flattenMessages(messages []relaymodel.Message) string {
	if len(messages) == 1 && messages[0].Role == "user" {
		return messages[0].StringContent()
	}

	var sb strings.Builder
	for _, msg := range messages {
		text := strings.TrimSpace(msg.StringContent())
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(text)
	}
	return sb.String()
}

// upstreamToken extracts the caller supplied upstream token. It is passed
// through unchanged.
func upstreamToken(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return auth
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// requestOptions snapshots the configuration for one request and applies the
// per request overrides.
func requestOptions(c *gin.Context, modelID, token string) grok.Options {
	opt := grok.DefaultOptions(modelID, token)
	opt.OpenMaterializer = openMaterializer
	opt.Logger = gmw.GetLogger(c)
	if v, ok := c.GetQuery("thinking"); ok {
		opt.ShowThinking = isTruthy(v)
	}
	return opt
}

// openConversation posts the prompt upstream. The returned cancel func bounds
// the whole exchange and must be called once the body is consumed.
func openConversation(c *gin.Context, m grok.ModelInfo, token, prompt string, imageCount int) (io.ReadCloser, context.CancelFunc, *relaymodel.ErrorWithStatusCode) {
	if upstream == nil {
		return nil, nil, relaymodel.ErrorWrapper(errors.New("upstream client is not configured"), "upstream_not_configured", http.StatusInternalServerError)
	}

	ctx, cancel := context.WithCancel(gmw.Ctx(c))
	if config.UpstreamTimeout > 0 {
		cancel()
		ctx, cancel = context.WithTimeout(gmw.Ctx(c), config.UpstreamTimeout)
	}

	body, err := upstream.Conversation(ctx, token, grok.NewConversationRequest(m, prompt, imageCount))
	if err != nil {
		cancel()
		return nil, nil, RelayErrorHandler(err)
	}
	c.Set(ctxkey.RequestModel, m.ID)
	return body, cancel, nil
}

// sseWriter writes processor frames to the client, sending the event stream
// headers with the first frame.
type sseWriter struct {
	c       *gin.Context
	started bool
}

func newSSEWriter(c *gin.Context) *sseWriter { return &sseWriter{c: c} }

func (w *sseWriter) WriteFrame(frame string) error {
	if !w.started {
		common.SetEventStreamHeaders(w.c)
		w.c.Status(http.StatusOK)
		w.started = true
	}
	return render.StringData(w.c, frame)
}
