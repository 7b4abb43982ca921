package servertime

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/folio/internal/pkg/response"
)

// Handler reports the server clock and the reporting timezone, so clients
// can tell when daily quotas roll over.
type Handler struct {
	loc *time.Location
	now func() time.Time
}

func NewHandler(loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{loc: loc, now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/server-time", h.get)
}

func (h *Handler) get(c *gin.Context) {
	received := h.now()
	local := received.In(h.loc)
	y, m, d := local.Date()
	reset := time.Date(y, m, d+1, 0, 0, 0, 0, h.loc)

	response.OK(c, gin.H{
		"t2":       received.UnixMilli(),
		"timezone": h.loc.String(),
		"day":      local.Format(time.DateOnly),
		"resetAt":  reset.UTC(),
		"t3":       h.now().UnixMilli(),
	})
}
