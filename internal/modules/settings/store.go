package settings

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/folio/internal/database"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists the two settings singletons.
type Store interface {
	// LoadFeatureFlags returns nil without error when the document is absent.
	LoadFeatureFlags(ctx context.Context) (*models.FeatureFlags, error)
	UpsertFeatureFlag(ctx context.Context, name string, value bool, now time.Time) (models.FeatureFlags, error)
	// LoadSiteSettings returns nil without error when the document is absent.
	LoadSiteSettings(ctx context.Context) (*models.SiteSettings, error)
	PatchSiteSettings(ctx context.Context, patch SitePatch, now time.Time) (models.SiteSettings, error)
	SetAdminPasswordHash(ctx context.Context, hash string, now time.Time) error
	InsertDefaults(ctx context.Context, now time.Time) error
}

// SitePatch lists the profile fields to overwrite; nil fields are untouched.
// Field formats are checked by the binding tags; an empty string clears a
// link or the email.
type SitePatch struct {
	Name      *string              `json:"name"`
	Title     *string              `json:"title"`
	Bio       *string              `json:"bio"`
	Avatar    *string              `json:"avatar"    binding:"omitempty,http_url|len=0"`
	Email     *string              `json:"email"     binding:"omitempty,email|len=0"`
	Location  *string              `json:"location"`
	ResumeURL *string              `json:"resumeUrl" binding:"omitempty,http_url|len=0"`
	Socials   *map[string]string   `json:"socials"   binding:"omitempty,dive,keys,required,endkeys,http_url"`
	Features  *models.SiteFeatures `json:"features"`
}

func (p SitePatch) empty() bool {
	return p.Name == nil && p.Title == nil && p.Bio == nil && p.Avatar == nil && p.Email == nil &&
		p.Location == nil && p.ResumeURL == nil && p.Socials == nil && p.Features == nil
}

func (p SitePatch) set() bson.M {
	out := bson.M{}
	put := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	put("name", p.Name)
	put("title", p.Title)
	put("bio", p.Bio)
	put("avatar", p.Avatar)
	put("email", p.Email)
	put("location", p.Location)
	put("resume_url", p.ResumeURL)
	if p.Socials != nil {
		socials := *p.Socials
		if socials == nil {
			socials = map[string]string{}
		}
		out["socials"] = socials
	}
	if p.Features != nil {
		out["features"] = *p.Features
	}
	return out
}

type mongoStore struct {
	db *database.Manager
}

// NewMongoStore keeps both singletons in the settings collection.
func NewMongoStore(db *database.Manager) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) collection(ctx context.Context) (*mongo.Collection, error) {
	return s.db.Collection(ctx, database.ColSettings)
}

func (s *mongoStore) LoadFeatureFlags(ctx context.Context) (*models.FeatureFlags, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	var flags models.FeatureFlags
	err = col.FindOne(ctx, bson.M{"_id": models.FeatureFlagsID}).Decode(&flags)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore("settings.flags.load", err)
	}
	return &flags, nil
}

func (s *mongoStore) UpsertFeatureFlag(ctx context.Context, name string, value bool, now time.Time) (models.FeatureFlags, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return models.FeatureFlags{}, err
	}

	onInsert := bson.M{}
	for _, other := range models.FeatureNames {
		if other != name {
			onInsert[other] = true
		}
	}
	update := bson.M{
		"$set":         bson.M{name: value, "updated_at": now},
		"$setOnInsert": onInsert,
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var flags models.FeatureFlags
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": models.FeatureFlagsID}, update, opts).Decode(&flags)
	if apperr.IsDuplicateKey(err) {
		// A concurrent first write created the document; it now exists.
		err = col.FindOneAndUpdate(ctx, bson.M{"_id": models.FeatureFlagsID}, update, opts).Decode(&flags)
	}
	if err != nil {
		return models.FeatureFlags{}, apperr.FromStore("settings.flags.set", err)
	}
	return flags, nil
}

func (s *mongoStore) LoadSiteSettings(ctx context.Context) (*models.SiteSettings, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	var site models.SiteSettings
	err = col.FindOne(ctx, bson.M{"_id": models.SiteSettingsID}).Decode(&site)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore("settings.site.load", err)
	}
	return &site, nil
}

func (s *mongoStore) PatchSiteSettings(ctx context.Context, patch SitePatch, now time.Time) (models.SiteSettings, error) {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return models.SiteSettings{}, err
	}

	set := patch.set()
	set["updated_at"] = now
	update := bson.M{"$set": set}
	if onInsert := siteInsertDefaults(set); len(onInsert) > 0 {
		update["$setOnInsert"] = onInsert
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var site models.SiteSettings
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": models.SiteSettingsID}, update, opts).Decode(&site)
	if err != nil {
		return models.SiteSettings{}, apperr.FromStore("settings.site.patch", err)
	}
	return site, nil
}

func (s *mongoStore) SetAdminPasswordHash(ctx context.Context, hash string, now time.Time) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return err
	}
	set := bson.M{"admin_password_hash": hash, "updated_at": now}
	update := bson.M{
		"$set":         set,
		"$unset":       bson.M{"admin_password": ""},
		"$setOnInsert": siteInsertDefaults(set),
	}
	_, err = col.UpdateOne(ctx, bson.M{"_id": models.SiteSettingsID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return apperr.FromStore("settings.site.password", err)
	}
	return nil
}

func (s *mongoStore) InsertDefaults(ctx context.Context, now time.Time) error {
	ctx, cancel := s.db.WithTimeout(ctx)
	defer cancel()
	col, err := s.collection(ctx)
	if err != nil {
		return err
	}

	flags := bson.M{"updated_at": now}
	for _, name := range models.FeatureNames {
		flags[name] = true
	}
	upsert := options.Update().SetUpsert(true)
	if _, err := col.UpdateOne(ctx, bson.M{"_id": models.FeatureFlagsID}, bson.M{"$setOnInsert": flags}, upsert); err != nil {
		return apperr.FromStore("settings.flags.default", err)
	}

	site := siteInsertDefaults(bson.M{})
	site["updated_at"] = now
	if _, err := col.UpdateOne(ctx, bson.M{"_id": models.SiteSettingsID}, bson.M{"$setOnInsert": site}, upsert); err != nil {
		return apperr.FromStore("settings.site.default", err)
	}
	return nil
}

// siteInsertDefaults returns the default sub-documents not already present
// in set; a field may not appear in both $set and $setOnInsert.
func siteInsertDefaults(set bson.M) bson.M {
	def := models.DefaultSiteSettings()
	out := bson.M{}
	if _, ok := set["socials"]; !ok {
		out["socials"] = def.Socials
	}
	if _, ok := set["features"]; !ok {
		out["features"] = def.Features
	}
	return out
}
