package tempmail

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

type createDTO struct {
	Renew bool `json:"renew"`
}

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("TempMailHandler")}
}

// RegisterRoutes mounts the mailbox routes behind mw (feature gate).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	g := rg.Group("/tempmail", mw...)
	g.POST("", h.create)
	g.GET("", h.status)
	g.GET("/messages", h.messages)
	g.DELETE("", h.remove)
}

func (h *Handler) create(c *gin.Context) {
	var dto createDTO
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}
	if c.Query("renew") == "true" {
		dto.Renew = true
	}
	st, err := h.svc.Create(c.Request.Context(), c.ClientIP(), dto.Renew)
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	response.Created(c, st)
}

func (h *Handler) status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context(), c.ClientIP())
	if err != nil {
		h.fail(c, "status", err)
		return
	}
	response.Data(c, st)
}

func (h *Handler) messages(c *gin.Context) {
	msgs, err := h.svc.Messages(c.Request.Context(), c.ClientIP())
	if err != nil {
		h.fail(c, "messages", err)
		return
	}
	response.Data(c, msgs)
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.ClientIP()); err != nil {
		h.fail(c, "delete", err)
		return
	}
	response.OK(c, nil)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.logger.Error("temp mail "+op+" failed", zap.String("ip", c.ClientIP()), zap.Error(err))
	}
	response.Error(c, err)
}
