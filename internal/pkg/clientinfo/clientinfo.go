package clientinfo

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mileusna/useragent"

	"github.com/mx-space/folio/internal/models"
)

const unknown = "Unknown"

// FromGin extracts the caller's origin from a gin request.
func FromGin(c *gin.Context) models.Origin {
	return Parse(c.ClientIP(), c.Request.UserAgent(), c.Request.Referer())
}

// Parse builds an Origin from raw request attributes.
func Parse(ip, agent, referrer string) models.Origin {
	o := models.Origin{
		IP:       strings.TrimSpace(ip),
		Agent:    agent,
		Referrer: referrer,
		Browser:  unknown,
		OS:       unknown,
		Device:   "desktop",
	}
	if agent == "" {
		return o
	}

	ua := useragent.Parse(agent)
	if ua.Name != "" {
		o.Browser = ua.Name
	}
	if ua.OS != "" {
		o.OS = ua.OS
	}
	switch {
	case ua.Mobile:
		o.Device = "mobile"
	case ua.Tablet:
		o.Device = "tablet"
	case ua.Bot:
		o.Device = "bot"
	}
	return o
}
