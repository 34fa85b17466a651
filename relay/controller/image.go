package controller

import (
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/common"
	"github.com/fuchsia74/grok-relay/common/helper"
	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
	"github.com/fuchsia74/grok-relay/relay/controller/validator"
	relaymodel "github.com/fuchsia74/grok-relay/relay/model"
)

const defaultImageModel = "grok-imagine-1.0"

func getImageRequest(c *gin.Context) (*relaymodel.ImageRequest, error) {
	body, err := common.GetRequestBody(c)
	if err != nil {
		return nil, errors.Wrap(err, "get request body")
	}

	imageRequest := &relaymodel.ImageRequest{}
	if err = common.UnmarshalBodyReusable(c, imageRequest); err != nil {
		return nil, errors.WithStack(err)
	}
	if imageRequest.N == 0 {
		imageRequest.N = 1
	}
	imageRequest.ResponseFormat = relaymodel.NormalizeImageFormat(imageRequest.ResponseFormat)
	if imageRequest.Model == "" {
		imageRequest.Model = defaultImageModel
	}

	logIgnoredParameters(c, body, relaymodel.ImageRequest{})
	return imageRequest, nil
}

// RelayImageHelper serves POST /v1/images/generations.
func RelayImageHelper(c *gin.Context) *relaymodel.ErrorWithStatusCode {
	lg := gmw.GetLogger(c)
	ctx := gmw.Ctx(c)

	imageRequest, err := getImageRequest(c)
	if err != nil {
		return relaymodel.ErrorWrapper(err, "invalid_image_request", http.StatusBadRequest)
	}
	if err = validator.ValidateImageRequest(imageRequest); err != nil {
		return relaymodel.ErrorWrapper(err, "invalid_image_request", http.StatusBadRequest)
	}

	m, ok := grok.LookupModel(imageRequest.Model)
	if !ok {
		return relaymodel.ErrorWrapper(errors.Errorf("model %q is not supported", imageRequest.Model), "model_not_found", http.StatusNotFound)
	}
	if m.Modality != grok.ModalityImage {
		return relaymodel.ErrorWrapper(errors.Errorf("model %q does not generate images", m.ID), "invalid_model_for_endpoint", http.StatusBadRequest)
	}

	token := upstreamToken(c)
	if token == "" {
		return relaymodel.ErrorWrapper(errors.New("missing upstream token in Authorization header"), "missing_upstream_token", http.StatusUnauthorized)
	}

	lg.Debug("relay image request",
		zap.String("model", m.ID),
		zap.Int("n", imageRequest.N),
		zap.String("response_format", imageRequest.ResponseFormat),
		zap.Bool("stream", imageRequest.Stream))

	body, cancel, bizErr := openConversation(c, m, token, imageRequest.Prompt, imageRequest.N)
	if bizErr != nil {
		return bizErr
	}
	defer cancel()
	defer body.Close()

	opt := requestOptions(c, m.ID, token)
	start := time.Now()

	if imageRequest.Stream {
		w := newSSEWriter(c)
		err = grok.NewImageStreamProcessor(opt, imageRequest.N, imageRequest.ResponseFormat).Process(ctx, body, w)
		return streamError(c, w, err)
	}

	images, err := grok.NewImageCollectProcessor(opt, imageRequest.ResponseFormat).Process(ctx, body)
	if err != nil {
		if len(images) == 0 {
			return RelayErrorHandler(err)
		}
		lg.Warn("upstream ended early, returning collected images", zap.Error(err), zap.Int("images", len(images)))
	}
	if len(images) > imageRequest.N {
		images = images[:imageRequest.N]
	}

	field := relaymodel.ImageResponseField(imageRequest.ResponseFormat)
	resp := relaymodel.ImageResponse{
		Created: helper.GetTimestamp(),
		Data:    make([]map[string]any, 0, len(images)),
	}
	for _, img := range images {
		resp.Data = append(resp.Data, map[string]any{field: img})
	}
	lg.Debug("images collected", zap.Int("count", len(resp.Data)), zap.Int64("elapsed_ms", helper.CalcElapsedTime(start)))
	c.JSON(http.StatusOK, resp)
	return nil
}
