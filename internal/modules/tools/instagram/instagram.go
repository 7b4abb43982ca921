package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/response"
	"github.com/mx-space/folio/internal/pkg/upstream"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// Profile is the public subset of an Instagram account.
type Profile struct {
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	Biography   string `json:"biography"`
	AvatarURL   string `json:"avatarUrl"`
	ExternalURL string `json:"externalUrl,omitempty"`
	Followers   int64  `json:"followers"`
	Following   int64  `json:"following"`
	Posts       int64  `json:"posts"`
	Verified    bool   `json:"verified"`
	Private     bool   `json:"private"`
}

type Scraper struct {
	client  *upstream.Client
	baseURL string
	appID   string
}

func NewScraper(client *upstream.Client, baseURL, appID string) *Scraper {
	return &Scraper{client: client, baseURL: strings.TrimRight(baseURL, "/"), appID: appID}
}

// Fetch loads username's public profile.
func (s *Scraper) Fetch(ctx context.Context, username string) (Profile, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if !usernamePattern.MatchString(username) {
		return Profile{}, apperr.Validation("username is invalid")
	}

	endpoint := s.baseURL + "/api/v1/users/web_profile_info/?username=" + url.QueryEscape(username)
	header := http.Header{}
	header.Set("X-IG-App-ID", s.appID)
	resp, err := s.client.JSON(ctx, http.MethodGet, endpoint, nil, header)
	if resp.StatusCode == http.StatusNotFound {
		return Profile{}, apperr.NotFound("instagram user %q not found", username)
	}
	if err != nil {
		return Profile{}, err
	}

	user := gjson.GetBytes(resp.Body, "data.user")
	if !user.Exists() || user.Type == gjson.Null {
		return Profile{}, apperr.NotFound("instagram user %q not found", username)
	}
	avatar := user.Get("profile_pic_url_hd").String()
	if avatar == "" {
		avatar = user.Get("profile_pic_url").String()
	}
	return Profile{
		Username:    user.Get("username").String(),
		FullName:    user.Get("full_name").String(),
		Biography:   user.Get("biography").String(),
		AvatarURL:   avatar,
		ExternalURL: user.Get("external_url").String(),
		Followers:   user.Get("edge_followed_by.count").Int(),
		Following:   user.Get("edge_follow.count").Int(),
		Posts:       user.Get("edge_owner_to_timeline_media.count").Int(),
		Verified:    user.Get("is_verified").Bool(),
		Private:     user.Get("is_private").Bool(),
	}, nil
}

type Handler struct {
	scraper *Scraper
	logger  *zap.Logger
}

func NewHandler(scraper *Scraper, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{scraper: scraper, logger: logger.Named("InstagramHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/instagram", h.profile)
}

func (h *Handler) profile(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		response.BadRequest(c, "username is required")
		return
	}
	p, err := h.scraper.Fetch(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, apperr.ErrUpstream) || errors.Is(err, apperr.ErrUpstreamTimeout) {
			h.logger.Warn("instagram scrape failed", zap.String("username", username), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.Data(c, p)
}
