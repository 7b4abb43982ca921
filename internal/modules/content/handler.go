package content

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/middleware"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/clientinfo"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

// gatedKinds maps content kinds to the feature flag that must be on to
// serve them.
var gatedKinds = map[models.ContentKind]string{
	models.ContentMusic:   models.FeatureMusicPlayer,
	models.ContentLibrary: models.FeatureLibrary,
}

type ActivityRecorder interface {
	RecordActivity(entry models.ActivityLogEntry)
}

type Handler struct {
	svc      *Service
	flags    middleware.FlagReader
	activity ActivityRecorder
	logger   *zap.Logger
	onChange func(ctx context.Context)
}

func NewHandler(svc *Service, flags middleware.FlagReader, activity ActivityRecorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, flags: flags, activity: activity, logger: logger.Named("ContentHandler")}
}

// OnChange registers a callback run after every successful write.
func (h *Handler) OnChange(fn func(ctx context.Context)) { h.onChange = fn }

// RegisterRoutes mounts one route group per kind. optionalAuthMW marks admin
// callers so they can read drafts.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, optionalAuthMW gin.HandlerFunc) {
	for _, kind := range models.ContentKinds {
		g := rg.Group("/content/" + string(kind))
		if flag, ok := gatedKinds[kind]; ok {
			g.Use(middleware.RequireFeature(h.flags, flag, h.logger))
		}
		g.GET("", optionalAuthMW, h.list(kind))
		g.GET("/:id", optionalAuthMW, h.get(kind))
		g.POST("", authMW, h.create(kind))
		g.PUT("/:id", authMW, h.update(kind))
		g.DELETE("/:id", authMW, h.remove(kind))
	}
}

func (h *Handler) list(kind models.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.svc.List(c.Request.Context(), kind, middleware.IsAdmin(c))
		if err != nil {
			h.fail(c, "list", kind, err)
			return
		}
		response.Data(c, items)
	}
}

func (h *Handler) get(kind models.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin := middleware.IsAdmin(c)
		item, err := h.svc.Get(c.Request.Context(), kind, c.Param("id"), admin)
		if err != nil {
			h.fail(c, "get", kind, err)
			return
		}
		if !admin {
			if err := h.svc.RecordView(c.Request.Context(), kind, item.ID); err != nil {
				h.logger.Debug("record view", zap.String("kind", string(kind)), zap.Error(err))
			}
		}
		response.Data(c, item)
	}
}

func (h *Handler) create(kind models.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in Input
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
		item, err := h.svc.Create(c.Request.Context(), kind, in)
		if err != nil {
			h.fail(c, "create", kind, err)
			return
		}
		h.changed(c, models.ActionCreate, kind, item.ContentItem)
		response.Created(c, item)
	}
}

func (h *Handler) update(kind models.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in Input
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
		item, err := h.svc.Update(c.Request.Context(), kind, c.Param("id"), in)
		if err != nil {
			h.fail(c, "update", kind, err)
			return
		}
		h.changed(c, models.ActionUpdate, kind, item.ContentItem)
		response.Data(c, item)
	}
}

func (h *Handler) remove(kind models.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := h.svc.Delete(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			h.fail(c, "delete", kind, err)
			return
		}
		h.changed(c, models.ActionDelete, kind, item)
		response.OK(c, nil)
	}
}

func (h *Handler) changed(c *gin.Context, action models.ActivityAction, kind models.ContentKind, item models.ContentItem) {
	entity, _ := kind.Entity()
	if h.activity != nil {
		h.activity.RecordActivity(models.ActivityLogEntry{
			Action:      action,
			Entity:      entity,
			EntityID:    item.ID,
			EntityName:  item.Title,
			Description: fmt.Sprintf("%s %s %q", action, kind, item.Title),
			Origin:      clientinfo.FromGin(c),
		})
	}
	if h.onChange != nil {
		h.onChange(c.Request.Context())
	}
}

func (h *Handler) fail(c *gin.Context, op string, kind models.ContentKind, err error) {
	if apperr.Status(err) >= 500 {
		h.logger.Error("content "+op, zap.String("kind", string(kind)), zap.Error(err))
	}
	response.Error(c, err)
}
