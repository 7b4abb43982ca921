package admin

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

const dashboardLimit = 10

// FlagReader supplies the feature panel of the dashboard.
type FlagReader interface {
	GetFeatureFlags(ctx context.Context, fallback models.FeatureFlags) (models.FeatureFlags, error)
}

type Handler struct {
	svc    *Service
	flags  FlagReader
	logger *zap.Logger
}

func NewHandler(svc *Service, flags FlagReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, flags: flags, logger: logger.Named("AdminHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := rg.Group("/admin", authMW)
	a.GET("/activity", h.activity)
	a.GET("/analytics", h.analytics)
	a.GET("/tempmail/history", h.history(models.SessionTempMail))
	a.GET("/chat/history", h.history(models.SessionChat))
	a.GET("/dashboard", h.dashboard)
}

func (h *Handler) activity(c *gin.Context) {
	limit, since, until, order, err := parseCommon(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	f := ActivityFilter{
		Action: models.ActivityAction(c.Query("action")),
		Entity: models.EntityKind(c.Query("entity")),
		Since:  since,
		Until:  until,
		Limit:  limit,
	}
	if f.Action != "" && !f.Action.Valid() {
		response.BadRequest(c, "unknown action")
		return
	}
	if f.Entity != "" && !f.Entity.Valid() {
		response.BadRequest(c, "unknown entity")
		return
	}
	res := h.svc.ListActivity(c.Request.Context(), f, order)
	c.JSON(http.StatusOK, panelBody(res.Items, res.Message()))
}

func (h *Handler) analytics(c *gin.Context) {
	limit, since, until, order, err := parseCommon(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	f := AnalyticsFilter{
		Kind:  models.EventKind(c.Query("kind")),
		Path:  c.Query("path"),
		Since: since,
		Until: until,
		Limit: limit,
	}
	if f.Kind != "" && !f.Kind.Valid() {
		response.BadRequest(c, "unknown kind")
		return
	}
	res := h.svc.ListAnalytics(c.Request.Context(), f, order)
	c.JSON(http.StatusOK, panelBody(res.Items, res.Message()))
}

// history is the one admin read that fails loudly: the history pages have
// no other panel to fall back on.
func (h *Handler) history(kind models.SessionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			response.Error(c, err)
			return
		}
		res := h.svc.ListSessions(c.Request.Context(), kind, limit)
		if res.Err != nil {
			response.Fail(c, http.StatusInternalServerError, res.Message())
			return
		}
		response.OK(c, gin.H{"sessions": res.Items})
	}
}

func (h *Handler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		wg        sync.WaitGroup
		activity  Result[models.ActivityLogEntry]
		analytics Result[models.AnalyticsEvent]
		tempmail  Result[models.EphemeralSession]
		chat      Result[models.EphemeralSession]
		flags     models.FeatureFlags
		flagsErr  error
	)
	wg.Add(5)
	go func() {
		defer wg.Done()
		activity = h.svc.ListActivity(ctx, ActivityFilter{Limit: dashboardLimit}, SortDesc)
	}()
	go func() {
		defer wg.Done()
		analytics = h.svc.ListAnalytics(ctx, AnalyticsFilter{Limit: dashboardLimit}, SortDesc)
	}()
	go func() {
		defer wg.Done()
		tempmail = h.svc.ListSessions(ctx, models.SessionTempMail, dashboardLimit)
	}()
	go func() {
		defer wg.Done()
		chat = h.svc.ListSessions(ctx, models.SessionChat, dashboardLimit)
	}()
	go func() {
		defer wg.Done()
		flags, flagsErr = h.flags.GetFeatureFlags(ctx, models.DefaultFeatureFlags())
	}()
	wg.Wait()

	features := gin.H{"flags": flags, "error": ""}
	if flagsErr != nil {
		h.logger.Warn("admin panel read failed", zap.String("panel", "features"), zap.Error(flagsErr))
		features["error"] = apperr.Message(flagsErr)
	}
	response.OK(c, gin.H{
		"activity":  panelBody(activity.Items, activity.Message()),
		"analytics": panelBody(analytics.Items, analytics.Message()),
		"tempmail":  panelBody(tempmail.Items, tempmail.Message()),
		"chat":      panelBody(chat.Items, chat.Message()),
		"features":  features,
	})
}

// panelBody renders a Result. success follows the panel's own outcome.
func panelBody[T any](items []T, errMsg string) gin.H {
	return gin.H{"success": errMsg == "", "items": items, "error": errMsg}
}

func parseCommon(c *gin.Context) (limit int, since, until time.Time, order Sort, err error) {
	if limit, err = parseLimit(c.Query("limit")); err != nil {
		return
	}
	if since, err = parseTime("since", c.Query("since")); err != nil {
		return
	}
	if until, err = parseTime("until", c.Query("until")); err != nil {
		return
	}
	order, err = ParseSort(c.Query("sort"))
	return
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("limit must be a non-negative integer")
	}
	return n, nil
}

func parseTime(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}
