package models

import (
	"time"

	"github.com/google/uuid"
)

// Base is embedded by multi-document collections.
// ID is a UUID string rather than an ObjectID so it survives JSON round trips unchanged.
type Base struct {
	ID        string    `json:"id"       bson:"_id"`
	CreatedAt time.Time `json:"created"  bson:"created_at"`
	UpdatedAt time.Time `json:"modified" bson:"updated_at"`
}

// Touch fills ID and timestamps before an insert.
func (b *Base) Touch(now time.Time) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Origin is the request metadata attached to analytics and audit records.
type Origin struct {
	IP       string `json:"ip,omitempty"       bson:"ip,omitempty"`
	Agent    string `json:"agent,omitempty"    bson:"agent,omitempty"`
	Browser  string `json:"browser,omitempty"  bson:"browser,omitempty"`
	OS       string `json:"os,omitempty"       bson:"os,omitempty"`
	Device   string `json:"device,omitempty"   bson:"device,omitempty"`
	Referrer string `json:"referrer,omitempty" bson:"referrer,omitempty"`
}
