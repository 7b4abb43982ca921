package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

type sendDTO struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("ChatHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	g := rg.Group("/chat", mw...)
	g.POST("", h.send)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.remove)
}

func (h *Handler) send(c *gin.Context) {
	var dto sendDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	reply, err := h.svc.Send(c.Request.Context(), dto.SessionID, dto.Message)
	if err != nil {
		h.fail(c, "send", dto.SessionID, err)
		return
	}
	response.Data(c, reply)
}

func (h *Handler) get(c *gin.Context) {
	thread, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get", c.Param("id"), err)
		return
	}
	response.Data(c, thread)
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "delete", c.Param("id"), err)
		return
	}
	response.OK(c, nil)
}

func (h *Handler) fail(c *gin.Context, op, sessionID string, err error) {
	if errors.Is(err, ErrNotConfigured) {
		response.Fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.logger.Error("chat "+op+" failed", zap.String("session", sessionID), zap.Error(err))
	}
	response.Error(c, err)
}
