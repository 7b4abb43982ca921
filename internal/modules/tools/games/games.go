package games

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/response"
	"github.com/mx-space/folio/internal/pkg/upstream"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	maxQueryRunes = 100
	DefaultLimit  = 10
	MaxLimit      = 25
)

// Game is one row of the store search page.
type Game struct {
	AppID    string `json:"appId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Image    string `json:"image,omitempty"`
	Released string `json:"released,omitempty"`
	Price    string `json:"price,omitempty"`
}

type Scraper struct {
	client  *upstream.Client
	baseURL string
}

func NewScraper(client *upstream.Client, baseURL string) *Scraper {
	return &Scraper{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Search returns up to limit games matching query.
func (s *Scraper) Search(ctx context.Context, query string, limit int) ([]Game, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("q is required")
	}
	if utf8.RuneCountInString(query) > maxQueryRunes {
		return nil, apperr.Validation("q must be at most %d characters", maxQueryRunes)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	params := url.Values{}
	params.Set("term", query)
	params.Set("category1", "998")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	games, err := parseResults(resp.Body, limit)
	if err != nil {
		return nil, apperr.Upstream(err, "games store returned an unreadable page")
	}
	return games, nil
}

func parseResults(body []byte, limit int) ([]Game, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	games := make([]Game, 0, limit)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(games) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "search_result_row") {
			if g, ok := parseRow(n); ok {
				games = append(games, g)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return games, nil
}

func parseRow(row *html.Node) (Game, bool) {
	g := Game{
		AppID: attr(row, "data-ds-appid"),
		URL:   stripQuery(attr(row, "href")),
	}
	if title := find(row, "span", "title"); title != nil {
		g.Title = text(title)
	}
	if g.Title == "" {
		return Game{}, false
	}
	if img := find(row, "img", ""); img != nil {
		g.Image = attr(img, "src")
	}
	if rel := find(row, "div", "search_released"); rel != nil {
		g.Released = text(rel)
	}
	if price := find(row, "div", "discount_final_price"); price != nil {
		g.Price = text(price)
	} else if price := find(row, "div", "search_price"); price != nil {
		g.Price = text(price)
	}
	return g, true
}

func find(n *html.Node, tag, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag && (class == "" || hasClass(c, class)) {
			return c
		}
		if found := find(c, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}

type Handler struct {
	scraper *Scraper
	logger  *zap.Logger
}

func NewHandler(scraper *Scraper, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{scraper: scraper, logger: logger.Named("GamesHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/games", h.search)
}

func (h *Handler) search(c *gin.Context) {
	q := c.Query("q")
	if strings.TrimSpace(q) == "" {
		response.BadRequest(c, "q is required")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	games, err := h.scraper.Search(c.Request.Context(), q, limit)
	if err != nil {
		if apperr.Status(err) >= http.StatusInternalServerError {
			h.logger.Warn("games search failed", zap.String("q", q), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.Data(c, games)
}
