package settings

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/clientinfo"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

// ActivityRecorder receives audit entries for admin mutations.
type ActivityRecorder interface {
	RecordActivity(entry models.ActivityLogEntry)
}

type Handler struct {
	svc      *Service
	activity ActivityRecorder
	logger   *zap.Logger
	onChange func(ctx context.Context)
}

func NewHandler(svc *Service, activity ActivityRecorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, activity: activity, logger: logger.Named("SettingsHandler")}
}

// OnChange registers a callback run after every successful admin write.
func (h *Handler) OnChange(fn func(ctx context.Context)) { h.onChange = fn }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/services", h.services)
	rg.GET("/settings", h.profile)

	a := rg.Group("/admin", authMW)
	a.GET("/settings", h.getSettings)
	a.PATCH("/settings", h.patchSettings)
	a.GET("/features", h.getFeatures)
	a.PUT("/features/:name", h.setFeature)
}

// services never fails the caller: on a store error it answers
// success=false together with the all-enabled defaults.
func (h *Handler) services(c *gin.Context) {
	flags, err := h.svc.GetFeatureFlags(c.Request.Context(), models.DefaultFeatureFlags())
	if err != nil {
		h.logger.Warn("feature flags unavailable", zap.String("op", "services"), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"success":  false,
			"error":    apperr.Message(err),
			"services": flags,
		})
		return
	}
	response.OK(c, gin.H{"services": flags})
}

func (h *Handler) profile(c *gin.Context) {
	profile, err := h.svc.Profile(c.Request.Context())
	if err != nil {
		h.logger.Error("load profile", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Data(c, profile)
}

func (h *Handler) getSettings(c *gin.Context) {
	site, err := h.svc.GetSiteSettings(c.Request.Context())
	if err != nil {
		h.logger.Error("load site settings", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Data(c, site)
}

func (h *Handler) patchSettings(c *gin.Context) {
	var patch SitePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid settings body")
		return
	}
	site, err := h.svc.UpdateSiteSettings(c.Request.Context(), patch)
	if err != nil {
		h.logger.Error("update site settings", zap.Error(err))
		response.Error(c, err)
		return
	}
	h.record(c, models.ActionUpdate, models.SiteSettingsID, "updated site settings")
	response.Data(c, site)
}

func (h *Handler) getFeatures(c *gin.Context) {
	flags, err := h.svc.GetFeatureFlags(c.Request.Context(), models.DefaultFeatureFlags())
	if err != nil {
		h.logger.Error("load feature flags", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Data(c, flags)
}

func (h *Handler) setFeature(c *gin.Context) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Enabled == nil {
		response.BadRequest(c, "enabled is required")
		return
	}
	name := c.Param("name")
	flags, err := h.svc.SetFeatureFlag(c.Request.Context(), name, *body.Enabled)
	if err != nil {
		h.logger.Error("set feature flag", zap.String("feature", name), zap.Error(err))
		response.Error(c, err)
		return
	}
	state := "disabled"
	if *body.Enabled {
		state = "enabled"
	}
	h.record(c, models.ActionUpdate, models.FeatureFlagsID, name+" "+state)
	response.Data(c, flags)
}

func (h *Handler) record(c *gin.Context, action models.ActivityAction, id, description string) {
	if h.onChange != nil {
		h.onChange(c.Request.Context())
	}
	if h.activity == nil {
		return
	}
	h.activity.RecordActivity(models.ActivityLogEntry{
		Action:      action,
		Entity:      models.EntitySettings,
		EntityID:    id,
		Description: description,
		Origin:      clientinfo.FromGin(c),
	})
}
