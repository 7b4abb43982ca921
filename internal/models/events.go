package models

import "time"

type EventKind string

const (
	EventRequestCompleted EventKind = "request-completed"
	EventPageViewed       EventKind = "page-viewed"
)

func (k EventKind) Valid() bool {
	return k == EventRequestCompleted || k == EventPageViewed
}

// AnalyticsEvent is append-only telemetry. Method, Status and LatencyMS are
// only meaningful for request-completed events.
type AnalyticsEvent struct {
	ID        string    `json:"id"                  bson:"_id"`
	Kind      EventKind `json:"kind"                bson:"kind"`
	Path      string    `json:"path"                bson:"path"`
	Method    string    `json:"method,omitempty"    bson:"method,omitempty"`
	Status    int       `json:"status,omitempty"    bson:"status,omitempty"`
	LatencyMS int64     `json:"latencyMs,omitempty" bson:"latency_ms,omitempty"`
	Origin    Origin    `json:"origin"              bson:"origin"`
	Timestamp time.Time `json:"timestamp"           bson:"timestamp"`
}

type ActivityAction string

const (
	ActionCreate ActivityAction = "create"
	ActionUpdate ActivityAction = "update"
	ActionDelete ActivityAction = "delete"
	ActionLogin  ActivityAction = "login"
	ActionLogout ActivityAction = "logout"
	ActionView   ActivityAction = "view"
	ActionUpload ActivityAction = "upload"
)

func (a ActivityAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout, ActionView, ActionUpload:
		return true
	}
	return false
}

type EntityKind string

const (
	EntityBlog         EntityKind = "blog"
	EntityProduct      EntityKind = "product"
	EntityProject      EntityKind = "project"
	EntitySkill        EntityKind = "skill"
	EntityMusic        EntityKind = "music"
	EntityLibrary      EntityKind = "library"
	EntityFile         EntityKind = "file"
	EntityNotification EntityKind = "notification"
	EntitySettings     EntityKind = "settings"
	EntityDonation     EntityKind = "donation"
	EntityRequest      EntityKind = "request"
)

func (e EntityKind) Valid() bool {
	switch e {
	case EntityBlog, EntityProduct, EntityProject, EntitySkill, EntityMusic, EntityLibrary,
		EntityFile, EntityNotification, EntitySettings, EntityDonation, EntityRequest:
		return true
	}
	return false
}

// ActivityLogEntry is an append-only audit record of a mutating action.
type ActivityLogEntry struct {
	ID          string         `json:"id"                   bson:"_id"`
	Action      ActivityAction `json:"action"               bson:"action"`
	Entity      EntityKind     `json:"entity"               bson:"entity"`
	EntityID    string         `json:"entityId,omitempty"   bson:"entity_id,omitempty"`
	EntityName  string         `json:"entityName,omitempty" bson:"entity_name,omitempty"`
	Description string         `json:"description"          bson:"description"`
	Origin      Origin         `json:"origin"               bson:"origin"`
	Timestamp   time.Time      `json:"timestamp"            bson:"timestamp"`
}
