package crontask

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	pkgcron "github.com/mx-space/folio/internal/pkg/cron"
	"github.com/mx-space/folio/internal/pkg/response"
)

// QueueStats reports the audit dispatcher's loss counters.
type QueueStats interface {
	Dropped() int64
	Failed() int64
}

// Handler exposes the scheduler to admins.
type Handler struct {
	sched *pkgcron.Scheduler
	queue QueueStats
}

func NewHandler(sched *pkgcron.Scheduler, queue QueueStats) *Handler {
	return &Handler{sched: sched, queue: queue}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/admin/cron", authMW)
	g.GET("", h.list)
	g.GET("/:name", h.get)
	g.POST("/:name/run", h.run)
}

// GET /admin/cron
func (h *Handler) list(c *gin.Context) {
	fields := gin.H{"jobs": h.sched.List()}
	if h.queue != nil {
		fields["queue"] = gin.H{"dropped": h.queue.Dropped(), "failed": h.queue.Failed()}
	}
	response.OK(c, fields)
}

// GET /admin/cron/:name
func (h *Handler) get(c *gin.Context) {
	item, err := h.sched.Get(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Data(c, item)
}

// POST /admin/cron/:name/run
func (h *Handler) run(c *gin.Context) {
	if err := h.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "job triggered"})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, pkgcron.ErrUnknownJob) {
		response.Fail(c, http.StatusNotFound, "job not found")
		return
	}
	response.Error(c, err)
}
