package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mx-space/folio/internal/config"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/metrics"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
)

// Model produces the assistant's next message for a transcript.
type Model interface {
	Reply(ctx context.Context, system string, transcript []models.ChatMessage) (string, error)
	Provider() string
	Name() string
}

type jetModel struct {
	provider  string
	name      string
	model     jetapi.LanguageModel
	maxTokens int
	timeout   time.Duration
}

// NewModel builds the configured provider. It returns nil when no API key
// is set.
func NewModel(cfg config.ChatConfig, timeout time.Duration) Model {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	modelID := strings.TrimSpace(cfg.Model)
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")

	m := &jetModel{provider: provider, maxTokens: cfg.MaxTokens, timeout: timeout}
	if provider == "anthropic" {
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(endpoint))
		}
		client := anthropicclient.NewClient(opts...)
		m.model = jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
	} else {
		m.provider = "openai"
		if modelID == "" {
			modelID = defaultOpenAIModel
		}
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, openaioption.WithBaseURL(endpoint))
		}
		client := openaiclient.NewClient(opts...)
		m.model = jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
	}
	m.name = modelID
	return m
}

func (m *jetModel) Provider() string { return m.provider }
func (m *jetModel) Name() string     { return m.name }

func (m *jetModel) Reply(ctx context.Context, system string, transcript []models.ChatMessage) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := jetai.GenerateText(ctx, promptMessages(system, transcript),
		jetai.WithModel(m.model),
		jetai.WithMaxOutputTokens(m.maxTokens),
	)
	text, err := replyText(ctx, resp, err)
	outcome := "ok"
	switch {
	case errors.Is(err, apperr.ErrUpstreamTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.UpstreamDuration.WithLabelValues("chat-"+m.provider, outcome).Observe(time.Since(started).Seconds())
	return text, err
}

func promptMessages(system string, transcript []models.ChatMessage) []jetapi.Message {
	out := make([]jetapi.Message, 0, len(transcript)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, &jetapi.SystemMessage{Content: system})
	}
	for _, msg := range transcript {
		switch msg.Role {
		case models.RoleUser:
			out = append(out, &jetapi.UserMessage{Content: jetapi.ContentFromText(msg.Content)})
		case models.RoleAssistant:
			out = append(out, &jetapi.AssistantMessage{Content: jetapi.ContentFromText(msg.Content)})
		}
	}
	return out
}

func replyText(ctx context.Context, resp *jetapi.Response, err error) (string, error) {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.UpstreamTimeout(err, "chat provider timed out")
		}
		return "", apperr.Upstream(err, "chat provider request failed")
	}
	if resp == nil {
		return "", apperr.Upstream(nil, "chat provider returned no content")
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.(*jetapi.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", apperr.Upstream(nil, "chat provider returned no content")
	}
	return text, nil
}
