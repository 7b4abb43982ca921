package settings

import (
	"context"
	"sync"
	"time"

	"github.com/mx-space/folio/internal/models"
)

// memStore mirrors the Mongo store's upsert semantics in memory.
type memStore struct {
	mu    sync.Mutex
	flags *models.FeatureFlags
	site  *models.SiteSettings
	err   error
	loads int
}

func (m *memStore) LoadFeatureFlags(context.Context) (*models.FeatureFlags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	if m.flags == nil {
		return nil, nil
	}
	f := *m.flags
	return &f, nil
}

func (m *memStore) UpsertFeatureFlag(_ context.Context, name string, value bool, now time.Time) (models.FeatureFlags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.FeatureFlags{}, m.err
	}
	if m.flags == nil {
		f := models.DefaultFeatureFlags()
		m.flags = &f
	}
	switch name {
	case models.FeatureMusicPlayer:
		m.flags.MusicPlayer = value
	case models.FeatureLibrary:
		m.flags.Library = value
	case models.FeatureAIImage:
		m.flags.AIImage = value
	case models.FeatureTempMail:
		m.flags.TempMail = value
	case models.FeatureUploader:
		m.flags.Uploader = value
	}
	m.flags.UpdatedAt = now
	return *m.flags, nil
}

func (m *memStore) LoadSiteSettings(context.Context) (*models.SiteSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.site == nil {
		return nil, nil
	}
	s := *m.site
	return &s, nil
}

func (m *memStore) PatchSiteSettings(_ context.Context, p SitePatch, now time.Time) (models.SiteSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.SiteSettings{}, m.err
	}
	if m.site == nil {
		s := models.DefaultSiteSettings()
		m.site = &s
	}
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&m.site.Name, p.Name)
	apply(&m.site.Title, p.Title)
	apply(&m.site.Bio, p.Bio)
	apply(&m.site.Avatar, p.Avatar)
	apply(&m.site.Email, p.Email)
	apply(&m.site.Location, p.Location)
	apply(&m.site.ResumeURL, p.ResumeURL)
	if p.Socials != nil {
		m.site.Socials = *p.Socials
	}
	if p.Features != nil {
		m.site.Features = *p.Features
	}
	m.site.UpdatedAt = now
	return *m.site, nil
}

func (m *memStore) SetAdminPasswordHash(_ context.Context, hash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.site == nil {
		s := models.DefaultSiteSettings()
		m.site = &s
	}
	m.site.AdminPasswordHash = hash
	m.site.LegacyAdminPassword = ""
	m.site.UpdatedAt = now
	return nil
}

func (m *memStore) InsertDefaults(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.flags == nil {
		f := models.DefaultFeatureFlags()
		f.UpdatedAt = now
		m.flags = &f
	}
	if m.site == nil {
		s := models.DefaultSiteSettings()
		m.site = &s
	}
	return nil
}
