package asset

import (
	"net/http"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/fuchsia74/grok-relay/relay/model"
)

// Handler serves cached assets on GET /v1/files/:kind/*path. Assets are only
// served once a processor materialized them; nothing is fetched on demand.
func Handler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := gmw.GetLogger(c)

		local, contentType, err := svc.Lookup(gmw.Ctx(c), c.Param("kind"), c.Param("path"))
		if err != nil {
			status := http.StatusInternalServerError
			code := "asset_error"
			switch {
			case errors.Is(err, ErrNotFound):
				status, code = http.StatusNotFound, "asset_not_found"
			case errors.Is(err, ErrInvalidPath), errors.Is(err, ErrUnknownKind):
				status, code = http.StatusBadRequest, "invalid_asset_path"
			default:
				lg.Error("lookup asset", zap.Error(err))
			}
			c.JSON(status, gin.H{"error": model.ErrorWrapper(err, code, status).Error})
			return
		}

		c.Header("Content-Type", contentType)
		c.Header("Cache-Control", "public, max-age=86400")
		c.File(local)
	}
}
