package models

// ContentKind names a portfolio collection served by the generic content routes.
type ContentKind string

const (
	ContentBlog         ContentKind = "blog"
	ContentProject      ContentKind = "project"
	ContentSkill        ContentKind = "skill"
	ContentProduct      ContentKind = "product"
	ContentMusic        ContentKind = "music"
	ContentLibrary      ContentKind = "library"
	ContentNotification ContentKind = "notification"
	ContentDonation     ContentKind = "donation"
)

// ContentKinds lists every content collection in route order.
var ContentKinds = []ContentKind{
	ContentBlog, ContentProject, ContentSkill, ContentProduct,
	ContentMusic, ContentLibrary, ContentNotification, ContentDonation,
}

var contentEntities = map[ContentKind]EntityKind{
	ContentBlog:         EntityBlog,
	ContentProject:      EntityProject,
	ContentSkill:        EntitySkill,
	ContentProduct:      EntityProduct,
	ContentMusic:        EntityMusic,
	ContentLibrary:      EntityLibrary,
	ContentNotification: EntityNotification,
	ContentDonation:     EntityDonation,
}

// Entity returns the audit entity kind for k.
func (k ContentKind) Entity() (EntityKind, bool) {
	e, ok := contentEntities[k]
	return e, ok
}

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	_, ok := contentEntities[k]
	return ok
}

// ContentItem is one entry of a portfolio collection.
type ContentItem struct {
	Base      `bson:",inline"`
	Kind      ContentKind `json:"kind"              bson:"kind"`
	Title     string      `json:"title"             bson:"title"`
	Slug      string      `json:"slug"              bson:"slug"`
	Summary   string      `json:"summary,omitempty" bson:"summary,omitempty"`
	Body      string      `json:"body,omitempty"    bson:"body,omitempty"` // markdown
	URL       string      `json:"url,omitempty"     bson:"url,omitempty"`
	Cover     string      `json:"cover,omitempty"   bson:"cover,omitempty"`
	Tags      []string    `json:"tags"              bson:"tags"`
	Order     int         `json:"order"             bson:"order"`
	Published bool        `json:"published"         bson:"published"`
	Views     int64       `json:"views"             bson:"views"`
}
