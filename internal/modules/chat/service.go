package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
)

const (
	// MaxReplayed is how many trailing messages are sent back to the model.
	MaxReplayed     = 20
	maxStored       = 200
	maxMessageRunes = 4000
	maxTitleRunes   = 60
)

var ErrNotConfigured = errors.New("chat is not configured")

type Sessions interface {
	Create(ctx context.Context, kind models.SessionKind, owner string, payload models.SessionPayload, ttl time.Duration) (models.EphemeralSession, error)
	Get(ctx context.Context, kind models.SessionKind, owner string) (models.EphemeralSession, error)
	Update(ctx context.Context, kind models.SessionKind, owner string, payload models.SessionPayload) (models.EphemeralSession, error)
	Delete(ctx context.Context, kind models.SessionKind, owner string) error
}

// Thread is a chat session as returned to clients.
type Thread struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Messages  []models.ChatMessage `json:"messages"`
	CreatedAt time.Time            `json:"createdAt"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// Reply is the outcome of one exchange.
type Reply struct {
	SessionID string             `json:"sessionId"`
	Title     string             `json:"title"`
	Message   models.ChatMessage `json:"message"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

type Service struct {
	model    Model
	sessions Sessions
	system   string
	ttl      time.Duration
	now      func() time.Time
}

// NewService returns a chat service. A nil model makes Send fail with
// ErrNotConfigured while reads keep working.
func NewService(model Model, sessions Sessions, system string, ttl time.Duration) *Service {
	return &Service{model: model, sessions: sessions, system: system, ttl: ttl, now: time.Now}
}

// Send appends message to the thread sessionID, or starts a new thread when
// sessionID is empty, and returns the assistant's answer. Nothing is stored
// when the provider fails.
func (s *Service) Send(ctx context.Context, sessionID, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(message) > maxMessageRunes {
		return Reply{}, apperr.Validation("message must be at most %d characters", maxMessageRunes)
	}
	if s.model == nil {
		return Reply{}, ErrNotConfigured
	}

	var payload models.ChatPayload
	sessionID = strings.TrimSpace(sessionID)
	isNew := sessionID == ""
	if isNew {
		sessionID = uuid.NewString()
		payload.Title = titleFrom(message)
	} else {
		sess, err := s.sessions.Get(ctx, models.SessionChat, sessionID)
		if err != nil {
			return Reply{}, err
		}
		payload = *sess.Payload.Chat
	}

	user := models.ChatMessage{Role: models.RoleUser, Content: message, CreatedAt: s.now().UTC()}
	transcript := append(replayed(payload.Messages), user)

	started := s.now()
	text, err := s.model.Reply(ctx, s.system, transcript)
	if err != nil {
		return Reply{}, err
	}
	assistant := models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: text,
		Meta: &models.MessageMeta{
			Provider:  s.model.Provider(),
			Model:     s.model.Name(),
			LatencyMS: s.now().Sub(started).Milliseconds(),
		},
		CreatedAt: s.now().UTC(),
	}

	payload.Messages = append(payload.Messages, user, assistant)
	if n := len(payload.Messages); n > maxStored {
		payload.Messages = payload.Messages[n-maxStored:]
	}

	var sess models.EphemeralSession
	if isNew {
		sess, err = s.sessions.Create(ctx, models.SessionChat, sessionID, models.SessionPayload{Chat: &payload}, s.ttl)
	} else {
		sess, err = s.sessions.Update(ctx, models.SessionChat, sessionID, models.SessionPayload{Chat: &payload})
	}
	if err != nil {
		return Reply{}, err
	}
	return Reply{SessionID: sessionID, Title: payload.Title, Message: assistant, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (Thread, error) {
	sess, err := s.sessions.Get(ctx, models.SessionChat, sessionID)
	if err != nil {
		return Thread{}, err
	}
	return Thread{
		ID:        sess.Owner,
		Title:     sess.Payload.Chat.Title,
		Messages:  sess.Payload.Chat.Messages,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, models.SessionChat, sessionID)
}

func replayed(history []models.ChatMessage) []models.ChatMessage {
	start := max(len(history)-(MaxReplayed-1), 0)
	out := make([]models.ChatMessage, 0, len(history)-start+1)
	return append(out, history[start:]...)
}

func titleFrom(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "..."
}
