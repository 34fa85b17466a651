package controller

import (
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common/helper"
	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
	relaymodel "github.com/fuchsia74/grok-relay/relay/model"
)

// RelayChatHelper serves POST /v1/chat/completions for text and video models.
func RelayChatHelper(c *gin.Context) *relaymodel.ErrorWithStatusCode {
	lg := gmw.GetLogger(c)
	ctx := gmw.Ctx(c)

	textRequest, err := getAndValidateTextRequest(c)
	if err != nil {
		return relaymodel.ErrorWrapper(err, "invalid_text_request", http.StatusBadRequest)
	}

	m, ok := grok.LookupModel(textRequest.Model)
	if !ok {
		return relaymodel.ErrorWrapper(errors.Errorf("model %q is not supported", textRequest.Model), "model_not_found", http.StatusNotFound)
	}
	if m.Modality == grok.ModalityImage {
		return relaymodel.ErrorWrapper(errors.Errorf("model %q only serves /v1/images/generations", m.ID), "invalid_model_for_endpoint", http.StatusBadRequest)
	}

	token := upstreamToken(c)
	if token == "" {
		return relaymodel.ErrorWrapper(errors.New("missing upstream token in Authorization header"), "missing_upstream_token", http.StatusUnauthorized)
	}

	prompt := flattenMessages(textRequest.Messages)
	lg.Debug("relay chat request",
		zap.String("model", m.ID),
		zap.String("modality", string(m.Modality)),
		zap.Bool("stream", textRequest.Stream),
		zap.Int("messages", len(textRequest.Messages)))

	body, cancel, bizErr := openConversation(c, m, token, prompt, 0)
	if bizErr != nil {
		return bizErr
	}
	defer cancel()
	defer body.Close()

	opt := requestOptions(c, m.ID, token)
	start := time.Now()

	if textRequest.Stream {
		w := newSSEWriter(c)
		if m.Modality == grok.ModalityVideo {
			err = grok.NewVideoStreamProcessor(opt).Process(ctx, body, w)
		} else {
			err = grok.NewChatStreamProcessor(opt).Process(ctx, body, w)
		}
		return streamError(c, w, err)
	}

	var completion *relaymodel.ChatCompletion
	if m.Modality == grok.ModalityVideo {
		completion, err = grok.NewVideoCollectProcessor(opt).Process(ctx, body)
	} else {
		completion, err = grok.NewChatCollectProcessor(opt).Process(ctx, body)
	}
	if err != nil {
		if completion == nil || completionContent(completion) == "" {
			return RelayErrorHandler(err)
		}
		lg.Warn("upstream ended early, returning partial completion", zap.Error(err))
	}

	lg.Debug("chat completion collected", zap.Int64("elapsed_ms", helper.CalcElapsedTime(start)))
	c.JSON(http.StatusOK, completion)
	return nil
}

// streamError decides what a failed stream turns into. Before the first frame
// the client still gets a JSON error; afterwards the stream is simply cut.
func streamError(c *gin.Context, w *sseWriter, err error) *relaymodel.ErrorWithStatusCode {
	if err == nil {
		return nil
	}
	if !w.started {
		return RelayErrorHandler(err)
	}
	gmw.GetLogger(c).Warn("stream interrupted", zap.Error(err))
	return nil
}

func completionContent(completion *relaymodel.ChatCompletion) string {
	if len(completion.Choices) == 0 {
		return ""
	}
	return completion.Choices[0].Message.Content
}
