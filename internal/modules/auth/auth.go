package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/clientinfo"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

// ErrInvalidCredentials covers both a wrong password and an unset one.
var ErrInvalidCredentials = errors.New("invalid password")

type LoginDTO struct {
	Password string `json:"password" binding:"required"`
}

type ChangePasswordDTO struct {
	Current string `json:"current" binding:"required"`
	Next    string `json:"next"    binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PasswordStore is the slice of the settings service that owns the secret.
type PasswordStore interface {
	GetSiteSettings(ctx context.Context) (models.SiteSettings, error)
	SetAdminPasswordHash(ctx context.Context, hash string) error
}

type TokenSigner interface {
	Sign(ttl time.Duration) (string, time.Time, error)
}

type ActivityRecorder interface {
	RecordActivity(entry models.ActivityLogEntry)
}

type Service struct {
	store    PasswordStore
	signer   TokenSigner
	tokenTTL time.Duration
	cost     int
	logger   *zap.Logger
}

func NewService(store PasswordStore, signer TokenSigner, tokenTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		signer:   signer,
		tokenTTL: tokenTTL,
		cost:     bcrypt.DefaultCost,
		logger:   logger.Named("AuthService"),
	}
}

// Login checks password against the stored hash and issues a token. A
// deployment that still holds only the legacy plaintext password is
// migrated to a hash on its first successful login.
func (s *Service) Login(ctx context.Context, password string) (string, time.Time, error) {
	site, err := s.store.GetSiteSettings(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	switch {
	case site.AdminPasswordHash != "":
		if bcrypt.CompareHashAndPassword([]byte(site.AdminPasswordHash), []byte(password)) != nil {
			return "", time.Time{}, ErrInvalidCredentials
		}
	case site.LegacyAdminPassword != "":
		if subtle.ConstantTimeCompare([]byte(site.LegacyAdminPassword), []byte(password)) != 1 {
			return "", time.Time{}, ErrInvalidCredentials
		}
		if err := s.setPassword(ctx, password); err != nil {
			s.logger.Error("migrate legacy admin password", zap.Error(err))
		} else {
			s.logger.Info("legacy admin password migrated to bcrypt")
		}
	default:
		s.logger.Warn("login attempted but no admin password is configured")
		return "", time.Time{}, ErrInvalidCredentials
	}

	return s.signer.Sign(s.tokenTTL)
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, current, next string) error {
	if err := checkPassword(next); err != nil {
		return err
	}
	if _, _, err := s.Login(ctx, current); err != nil {
		return err
	}
	return s.setPassword(ctx, next)
}

// Bootstrap stores initial as the admin password when none exists yet.
// It reports whether a password was written.
func (s *Service) Bootstrap(ctx context.Context, initial string) (bool, error) {
	if initial == "" {
		return false, nil
	}
	site, err := s.store.GetSiteSettings(ctx)
	if err != nil {
		return false, err
	}
	if site.AdminPasswordHash != "" || site.LegacyAdminPassword != "" {
		return false, nil
	}
	if err := checkPassword(initial); err != nil {
		return false, err
	}
	return true, s.setPassword(ctx, initial)
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return apperr.Validation("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

func (s *Service) setPassword(ctx context.Context, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	return s.store.SetAdminPasswordHash(ctx, string(hash))
}

type Handler struct {
	svc      *Service
	activity ActivityRecorder
	logger   *zap.Logger
}

func NewHandler(svc *Service, activity ActivityRecorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, activity: activity, logger: logger.Named("AuthHandler")}
}

// RegisterRoutes mounts the admin session routes. loginMW guards the
// unauthenticated login route, typically with a rate limiter.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, loginMW gin.HandlerFunc) {
	a := rg.Group("/admin")
	a.POST("/login", loginMW, h.login)
	a.POST("/logout", authMW, h.logout)
	a.GET("/session", authMW, h.session)
	a.PUT("/password", authMW, h.changePassword)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "password is required")
		return
	}
	token, expires, err := h.svc.Login(c.Request.Context(), dto.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	h.record(c, models.ActionLogin, "admin signed in")
	response.OK(c, gin.H{"data": loginResponse{Token: token, ExpiresAt: expires}})
}

func (h *Handler) logout(c *gin.Context) {
	h.record(c, models.ActionLogout, "admin signed out")
	response.OK(c, nil)
}

func (h *Handler) session(c *gin.Context) {
	response.OK(c, gin.H{"admin": true})
}

func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "current and next are required")
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), dto.Current, dto.Next); err != nil {
		h.fail(c, "change password", err)
		return
	}
	h.record(c, models.ActionUpdate, "admin password changed")
	response.OK(c, nil)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, ErrInvalidCredentials) {
		response.Fail(c, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}
	if apperr.Status(err) >= 500 {
		h.logger.Error(op, zap.Error(err))
	}
	response.Error(c, err)
}

func (h *Handler) record(c *gin.Context, action models.ActivityAction, description string) {
	if h.activity == nil {
		return
	}
	h.activity.RecordActivity(models.ActivityLogEntry{
		Action:      action,
		Entity:      models.EntitySettings,
		EntityName:  "admin",
		Description: description,
		Origin:      clientinfo.FromGin(c),
	})
}
