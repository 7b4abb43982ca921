package models

import "time"

// SessionKind separates owners of different ephemeral resources.
type SessionKind string

const (
	SessionTempMail SessionKind = "tempmail"
	SessionChat     SessionKind = "chat"
)

// Valid reports whether k is a known session kind.
func (k SessionKind) Valid() bool {
	return k == SessionTempMail || k == SessionChat
}

// EphemeralSession is a perishable resource grant owned by an IP or a
// generated id. The store removes it after ExpiresAt; reads also filter on it.
type EphemeralSession struct {
	ID        string         `json:"id"        bson:"_id"`
	Kind      SessionKind    `json:"kind"      bson:"kind"`
	Owner     string         `json:"owner"     bson:"owner"`
	Payload   SessionPayload `json:"payload"   bson:"payload"`
	CreatedAt time.Time      `json:"createdAt" bson:"created_at"`
	ExpiresAt time.Time      `json:"expiresAt" bson:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s EphemeralSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionPayload is a tagged union keyed by the session kind: exactly one
// member is set and it matches EphemeralSession.Kind.
type SessionPayload struct {
	TempMail *TempMailPayload `json:"tempMail,omitempty" bson:"tempmail,omitempty"`
	Chat     *ChatPayload     `json:"chat,omitempty"     bson:"chat,omitempty"`
}

// Matches reports whether the populated member agrees with kind.
func (p SessionPayload) Matches(kind SessionKind) bool {
	switch kind {
	case SessionTempMail:
		return p.TempMail != nil && p.Chat == nil
	case SessionChat:
		return p.Chat != nil && p.TempMail == nil
	default:
		return false
	}
}

// TempMailPayload is the mailbox assigned by the temp-mail provider.
type TempMailPayload struct {
	AccountID string `json:"-"       bson:"account_id,omitempty"`
	Address   string `json:"address" bson:"address"`
	Password  string `json:"-"       bson:"password"`
	Token     string `json:"-"       bson:"token"`
}

// ChatPayload is a chat thread transcript.
type ChatPayload struct {
	Title    string        `json:"title"    bson:"title"`
	Messages []ChatMessage `json:"messages" bson:"messages"`
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role      ChatRole     `json:"role"           bson:"role"`
	Content   string       `json:"content"        bson:"content"`
	Meta      *MessageMeta `json:"meta,omitempty" bson:"meta,omitempty"`
	CreatedAt time.Time    `json:"createdAt"      bson:"created_at"`
}

// MessageMeta describes how an assistant reply was produced.
type MessageMeta struct {
	Provider  string `json:"provider"            bson:"provider"`
	Model     string `json:"model"               bson:"model"`
	LatencyMS int64  `json:"latencyMs,omitempty" bson:"latency_ms,omitempty"`
}
