package events

import (
	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/clientinfo"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

type Handler struct {
	rec    *Recorder
	logger *zap.Logger
}

func NewHandler(rec *Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{rec: rec, logger: logger.Named("AnalyticsHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analytics-track", h.track)
}

type trackRequest struct {
	Events []models.AnalyticsEvent `json:"events"`
}

func (h *Handler) track(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if len(req.Events) == 0 {
		response.BadRequest(c, "events is required")
		return
	}

	origin := clientinfo.FromGin(c)
	for i := range req.Events {
		// Identity and origin are always server-assigned.
		req.Events[i].ID = ""
		req.Events[i].Origin = origin
	}

	n, err := h.rec.RecordBatch(c.Request.Context(), req.Events)
	if err != nil {
		if n > 0 {
			h.logger.Warn("analytics batch partially written", zap.Int("written", n), zap.Int("total", len(req.Events)), zap.Error(err))
		} else {
			h.logger.Warn("analytics batch rejected", zap.Error(err))
		}
		c.AbortWithStatusJSON(apperr.Status(err), gin.H{
			"success": false,
			"error":   apperr.Message(err),
			"count":   n,
		})
		return
	}
	response.OK(c, gin.H{"count": n})
}
