package settings

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/markdown"
)

const defaultFlagsCacheTTL = 5 * time.Second

// Service is the Settings Store. Feature flags are cached in memory for a
// few seconds because every gated route reads them; writes through this
// service invalidate the cache immediately.
type Service struct {
	store Store
	now   func() time.Time

	mu       sync.RWMutex
	flags    *models.FeatureFlags
	flagsAt  time.Time
	flagsTTL time.Duration
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now, flagsTTL: defaultFlagsCacheTTL}
}

// SetFlagsCacheTTL changes how long flags are served from memory. Zero
// disables the cache.
func (s *Service) SetFlagsCacheTTL(ttl time.Duration) {
	s.mu.Lock()
	s.flagsTTL = ttl
	s.flags = nil
	s.mu.Unlock()
}

// GetFeatureFlags returns the stored flags. When the record is absent the
// fallback is returned with a nil error; when the read fails the fallback is
// returned together with the error. It never writes.
func (s *Service) GetFeatureFlags(ctx context.Context, fallback models.FeatureFlags) (models.FeatureFlags, error) {
	if cached, ok := s.cachedFlags(); ok {
		return cached, nil
	}
	flags, err := s.store.LoadFeatureFlags(ctx)
	if err != nil {
		return fallback, err
	}
	if flags == nil {
		return fallback, nil
	}
	s.storeFlags(*flags)
	return *flags, nil
}

// SetFeatureFlag creates or updates the flag record and returns it.
func (s *Service) SetFeatureFlag(ctx context.Context, name string, value bool) (models.FeatureFlags, error) {
	if !models.IsFeatureName(name) {
		return models.FeatureFlags{}, apperr.Validation("unknown feature %q", name)
	}
	flags, err := s.store.UpsertFeatureFlag(ctx, name, value, s.now().UTC())
	if err != nil {
		s.invalidateFlags()
		return models.FeatureFlags{}, err
	}
	s.storeFlags(flags)
	return flags, nil
}

// EnsureDefault inserts the all-enabled flags and an empty profile when
// they do not exist yet. Existing records are left alone.
func (s *Service) EnsureDefault(ctx context.Context) error {
	s.invalidateFlags()
	return s.store.InsertDefaults(ctx, s.now().UTC())
}

// GetSiteSettings returns the profile, or the empty default when absent.
func (s *Service) GetSiteSettings(ctx context.Context) (models.SiteSettings, error) {
	site, err := s.store.LoadSiteSettings(ctx)
	if err != nil {
		return models.SiteSettings{}, err
	}
	if site == nil {
		return models.DefaultSiteSettings(), nil
	}
	if site.Socials == nil {
		site.Socials = map[string]string{}
	}
	return *site, nil
}

// UpdateSiteSettings overwrites the provided fields, creating the record if
// needed. Concurrent updates are last-write-wins per field.
func (s *Service) UpdateSiteSettings(ctx context.Context, patch SitePatch) (models.SiteSettings, error) {
	if err := validatePatch(&patch); err != nil {
		return models.SiteSettings{}, err
	}
	return s.store.PatchSiteSettings(ctx, patch, s.now().UTC())
}

// SetAdminPasswordHash stores a new hash and drops any legacy plaintext.
func (s *Service) SetAdminPasswordHash(ctx context.Context, hash string) error {
	if hash == "" {
		return apperr.Validation("password hash is empty")
	}
	return s.store.SetAdminPasswordHash(ctx, hash, s.now().UTC())
}

// PublicProfile is the site profile as served to visitors.
type PublicProfile struct {
	models.SiteSettings
	BioHTML string `json:"bioHtml"`
}

// Profile returns the public profile with the bio rendered to HTML.
func (s *Service) Profile(ctx context.Context) (PublicProfile, error) {
	site, err := s.GetSiteSettings(ctx)
	if err != nil {
		return PublicProfile{}, err
	}
	return PublicProfile{SiteSettings: site, BioHTML: markdown.Render(site.Bio)}, nil
}

func (s *Service) cachedFlags() (models.FeatureFlags, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.flags == nil || s.flagsTTL <= 0 || s.now().Sub(s.flagsAt) >= s.flagsTTL {
		return models.FeatureFlags{}, false
	}
	return *s.flags, true
}

func (s *Service) storeFlags(flags models.FeatureFlags) {
	s.mu.Lock()
	s.flags = &flags
	s.flagsAt = s.now()
	s.mu.Unlock()
}

func (s *Service) invalidateFlags() {
	s.mu.Lock()
	s.flags = nil
	s.mu.Unlock()
}

func validatePatch(p *SitePatch) error {
	if p.empty() {
		return apperr.Validation("no settings to update")
	}
	trim := func(v *string) {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}
	trim(p.Name)
	trim(p.Title)
	trim(p.Avatar)
	trim(p.Email)
	trim(p.Location)
	trim(p.ResumeURL)

	if p.Socials != nil {
		for platform := range *p.Socials {
			if strings.TrimSpace(platform) == "" {
				return apperr.Validation("social platform name is empty")
			}
		}
	}
	return nil
}
