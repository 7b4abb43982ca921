package models

import "time"

// Singleton document ids in the settings collection.
const (
	FeatureFlagsID = "feature_flags"
	SiteSettingsID = "site_settings"
)

// Feature flag names, as exposed by /api/services.
const (
	FeatureMusicPlayer = "musicPlayer"
	FeatureLibrary     = "library"
	FeatureAIImage     = "aiImage"
	FeatureTempMail    = "tempMail"
	FeatureUploader    = "uploader"
)

// FeatureNames lists every toggleable feature in display order.
var FeatureNames = []string{FeatureMusicPlayer, FeatureLibrary, FeatureAIImage, FeatureTempMail, FeatureUploader}

// FeatureFlags is the singleton per-feature toggle record. Absence of the
// document means every feature is enabled.
type FeatureFlags struct {
	MusicPlayer bool      `json:"musicPlayer" bson:"musicPlayer"`
	Library     bool      `json:"library"     bson:"library"`
	AIImage     bool      `json:"aiImage"     bson:"aiImage"`
	TempMail    bool      `json:"tempMail"    bson:"tempMail"`
	Uploader    bool      `json:"uploader"    bson:"uploader"`
	UpdatedAt   time.Time `json:"-"           bson:"updated_at,omitempty"`
}

// DefaultFeatureFlags is the all-enabled fallback.
func DefaultFeatureFlags() FeatureFlags {
	return FeatureFlags{MusicPlayer: true, Library: true, AIImage: true, TempMail: true, Uploader: true}
}

// Enabled reports the value of a named flag. Unknown names are disabled.
func (f FeatureFlags) Enabled(name string) bool {
	switch name {
	case FeatureMusicPlayer:
		return f.MusicPlayer
	case FeatureLibrary:
		return f.Library
	case FeatureAIImage:
		return f.AIImage
	case FeatureTempMail:
		return f.TempMail
	case FeatureUploader:
		return f.Uploader
	default:
		return false
	}
}

// IsFeatureName reports whether name is a known feature flag.
func IsFeatureName(name string) bool {
	for _, n := range FeatureNames {
		if n == name {
			return true
		}
	}
	return false
}

// SiteFeatures toggles which portfolio sections the public site renders.
type SiteFeatures struct {
	Blog      bool `json:"blog"      bson:"blog"`
	Projects  bool `json:"projects"  bson:"projects"`
	Skills    bool `json:"skills"    bson:"skills"`
	Products  bool `json:"products"  bson:"products"`
	Donations bool `json:"donations" bson:"donations"`
}

// SiteSettings is the singleton profile document.
type SiteSettings struct {
	Name      string `json:"name"      bson:"name"`
	Title     string `json:"title"     bson:"title"`
	Bio       string `json:"bio"       bson:"bio"` // markdown
	Avatar    string `json:"avatar"    bson:"avatar"`
	Email     string `json:"email"     bson:"email"`
	Location  string `json:"location"  bson:"location"`
	ResumeURL string `json:"resumeUrl" bson:"resume_url"`
	// Socials maps a platform name ("github", "x", ...) to a profile URL.
	Socials  map[string]string `json:"socials"  bson:"socials"`
	Features SiteFeatures      `json:"features" bson:"features"`

	AdminPasswordHash string `json:"-" bson:"admin_password_hash,omitempty"`
	// LegacyAdminPassword is a plaintext value left by older deployments.
	// It is only read to migrate it into AdminPasswordHash.
	LegacyAdminPassword string    `json:"-"        bson:"admin_password,omitempty"`
	UpdatedAt           time.Time `json:"modified" bson:"updated_at,omitempty"`
}

// DefaultSiteSettings is returned when no settings document exists yet.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		Socials:  map[string]string{},
		Features: SiteFeatures{Blog: true, Projects: true, Skills: true, Products: true, Donations: true},
	}
}
