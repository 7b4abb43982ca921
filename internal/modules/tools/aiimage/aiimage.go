package aiimage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/config"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/metrics"
	"github.com/mx-space/folio/internal/pkg/response"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"
)

const (
	maxPromptRunes = 1000
	serviceName    = "ai-image"
)

var ErrNotConfigured = errors.New("ai image generation is not configured")

var sizes = map[string]openai.ImageGenerateParamsSize{
	"":          openai.ImageGenerateParamsSize1024x1024,
	"1024x1024": openai.ImageGenerateParamsSize1024x1024,
	"1792x1024": openai.ImageGenerateParamsSize1792x1024,
	"1024x1792": openai.ImageGenerateParamsSize1024x1792,
}

// Image is one generated picture.
type Image struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64Json,omitempty"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

type Generator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewGenerator returns nil when no API key is configured.
func NewGenerator(cfg config.AIImageConfig, timeout time.Duration) *Generator {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(endpoint, "/")+"/"))
	}
	client := openai.NewClient(opts...)
	return &Generator{client: &client, model: cfg.Model, timeout: timeout}
}

// Generate produces one image for prompt.
func (g *Generator) Generate(ctx context.Context, prompt, size string) (Image, error) {
	if g == nil {
		return Image{}, ErrNotConfigured
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Image{}, apperr.Validation("prompt is required")
	}
	if utf8.RuneCountInString(prompt) > maxPromptRunes {
		return Image{}, apperr.Validation("prompt must be at most %d characters", maxPromptRunes)
	}
	sz, ok := sizes[size]
	if !ok {
		return Image{}, apperr.Validation("size %q is not supported", size)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(g.model),
		N:      openai.Int(1),
		Size:   sz,
	})
	err = classify(ctx, err)
	outcome := "ok"
	switch {
	case errors.Is(err, apperr.ErrUpstreamTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.UpstreamDuration.WithLabelValues(serviceName, outcome).Observe(time.Since(started).Seconds())
	if err != nil {
		return Image{}, err
	}
	if len(resp.Data) == 0 {
		return Image{}, apperr.Upstream(nil, "%s returned no image", serviceName)
	}
	img := resp.Data[0]
	return Image{URL: img.URL, B64JSON: img.B64JSON, RevisedPrompt: img.RevisedPrompt}, nil
}

func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.UpstreamTimeout(err, "%s timed out", serviceName)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusBadRequest {
			return apperr.Validation("prompt was rejected by the image provider")
		}
		return apperr.Upstream(err, "%s responded with status %d", serviceName, apiErr.StatusCode)
	}
	return apperr.Upstream(err, "%s request failed", serviceName)
}

type generateDTO struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

type Handler struct {
	gen    *Generator
	logger *zap.Logger
}

func NewHandler(gen *Generator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gen: gen, logger: logger.Named("AIImageHandler")}
}

// RegisterRoutes mounts the generator behind mw (feature gate, idempotence).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	rg.POST("/ai-image", append(mw, h.generate)...)
}

func (h *Handler) generate(c *gin.Context) {
	var dto generateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	img, err := h.gen.Generate(c.Request.Context(), dto.Prompt, dto.Size)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			response.Fail(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		if apperr.Status(err) >= http.StatusInternalServerError {
			h.logger.Error("image generation failed", zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.Data(c, img)
}
