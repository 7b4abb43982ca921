package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

// FlagReader is the part of the settings store the feature gate needs.
type FlagReader interface {
	GetFeatureFlags(ctx context.Context, fallback models.FeatureFlags) (models.FeatureFlags, error)
}

// RequireFeature answers 403 when the named feature flag is off. A failing
// store read falls back to the all-enabled defaults.
func RequireFeature(flags FlagReader, name string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		current, err := flags.GetFeatureFlags(c.Request.Context(), models.DefaultFeatureFlags())
		if err != nil {
			log.Warn("feature flags unavailable, using defaults", zap.String("feature", name), zap.Error(err))
		}
		if !current.Enabled(name) {
			response.Forbidden(c, name+" is disabled")
			return
		}
		c.Next()
	}
}
