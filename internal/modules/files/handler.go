package files

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/clientinfo"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
)

type ActivityRecorder interface {
	RecordActivity(entry models.ActivityLogEntry)
}

type Handler struct {
	svc       *Service
	activity  ActivityRecorder
	maxUpload int64
	logger    *zap.Logger
	onChange  func(ctx context.Context)
}

func NewHandler(svc *Service, activity ActivityRecorder, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, activity: activity, maxUpload: maxUploadBytes, logger: logger.Named("FileHandler")}
}

// OnChange registers a callback run after every successful write.
func (h *Handler) OnChange(fn func(ctx context.Context)) { h.onChange = fn }

// RegisterRoutes mounts the file routes. uploadMW runs before the upload
// handler (feature gate, idempotence guard).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, uploadMW ...gin.HandlerFunc) {
	rg.GET("/files", h.list)
	rg.GET("/files/:id", h.get)
	rg.POST("/files/:id/download", h.download)

	a := rg.Group("/admin/files", authMW)
	a.POST("", append(uploadMW, h.upload)...)
	a.DELETE("/:id", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	response.Data(c, items)
}

func (h *Handler) get(c *gin.Context) {
	f, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get", err)
		return
	}
	response.Data(c, f)
}

// download always answers success for an unknown id so the counter cannot
// be used to probe which files exist.
func (h *Handler) download(c *gin.Context) {
	if err := h.svc.CountDownload(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "download", err)
		return
	}
	response.OK(c, nil)
}

func (h *Handler) upload(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+(1<<20))
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		response.BadRequest(c, "file is required")
		return
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		response.Fail(c, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}
	body, err := header.Open()
	if err != nil {
		response.BadRequest(c, "file is unreadable")
		return
	}
	defer body.Close()

	contentType := header.Header.Get("Content-Type")
	f, err := h.svc.Upload(c.Request.Context(), Upload{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        body,
	})
	if err != nil {
		h.fail(c, "upload", err)
		return
	}
	h.changed(c, models.ActionUpload, f, fmt.Sprintf("uploaded %q (%d bytes)", f.Name, f.Size))
	response.Created(c, f)
}

func (h *Handler) remove(c *gin.Context) {
	f, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "delete", err)
		return
	}
	h.changed(c, models.ActionDelete, f, fmt.Sprintf("deleted %q", f.Name))
	response.OK(c, nil)
}

func (h *Handler) changed(c *gin.Context, action models.ActivityAction, f models.FileModel, description string) {
	if h.activity != nil {
		h.activity.RecordActivity(models.ActivityLogEntry{
			Action:      action,
			Entity:      models.EntityFile,
			EntityID:    f.PublicID,
			EntityName:  f.Name,
			Description: description,
			Origin:      clientinfo.FromGin(c),
		})
	}
	if h.onChange != nil {
		h.onChange(c.Request.Context())
	}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, ErrStorageDisabled) {
		response.Fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	if apperr.Status(err) >= 500 {
		h.logger.Error("file "+op, zap.Error(err))
	}
	response.Error(c, err)
}
