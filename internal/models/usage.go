package models

import "time"

// UsageCounter counts uses of a rate-limited feature per source per calendar day.
// (Source, Day) is unique; Count only grows.
type UsageCounter struct {
	Source    string    `json:"source"    bson:"source"`
	Day       string    `json:"day"       bson:"day"` // YYYY-MM-DD in the configured zone
	Count     int       `json:"count"     bson:"count"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expires_at"`
}
