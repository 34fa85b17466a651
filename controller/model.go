package controller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v5"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/fuchsia74/grok-relay/relay/adaptor/grok"
	relaymodel "github.com/fuchsia74/grok-relay/relay/model"
)

// https://platform.openai.com/docs/api-reference/models/list

const (
	modelsCacheKey = "models"
	modelCreated   = 1735689600
	modelOwner     = "xai"
)

type OpenAIModel struct {
	Id          string `json:"id"`
	Object      string `json:"object"`
	Created     int    `json:"created"`
	OwnedBy     string `json:"owned_by"`
	DisplayName string `json:"display_name"`
	// Modality is text, image or video
	Modality string `json:"modality"`
	Tier     string `json:"tier"`
}

type OpenAIModelList struct {
	Object string        `json:"object"`
	Data   []OpenAIModel `json:"data"`
}

var (
	modelListCache = gutils.NewExpCache[OpenAIModelList](context.Background(), time.Minute)
	modelListGroup singleflight.Group
)

func toOpenAIModel(m grok.ModelInfo) OpenAIModel {
	return OpenAIModel{
		Id:          m.ID,
		Object:      "model",
		Created:     modelCreated,
		OwnedBy:     modelOwner,
		DisplayName: m.DisplayName,
		Modality:    string(m.Modality),
		Tier:        string(m.Tier),
	}
}

func loadModelList() OpenAIModelList {
	if cached, ok := modelListCache.Load(modelsCacheKey); ok {
		return cached
	}

	v, _, _ := modelListGroup.Do(modelsCacheKey, func() (any, error) {
		catalog := grok.ModelList()
		list := OpenAIModelList{Object: "list", Data: make([]OpenAIModel, 0, len(catalog))}
		for _, m := range catalog {
			list.Data = append(list.Data, toOpenAIModel(m))
		}
		modelListCache.Store(modelsCacheKey, list)
		return list, nil
	})
	return v.(OpenAIModelList)
}

// ListModels serves GET /v1/models.
func ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, loadModelList())
}

// RetrieveModel serves GET /v1/models/:model.
func RetrieveModel(c *gin.Context) {
	modelId := c.Param("model")
	if m, ok := grok.LookupModel(modelId); ok {
		c.JSON(http.StatusOK, toOpenAIModel(m))
		return
	}

	msg := fmt.Sprintf("The model '%s' does not exist", modelId)
	c.JSON(http.StatusNotFound, gin.H{
		"error": relaymodel.Error{
			Message:  msg,
			Type:     "invalid_request_error",
			Param:    "model",
			Code:     "model_not_found",
			RawError: errors.New(msg),
		},
	})
}
