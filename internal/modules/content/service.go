package content

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/markdown"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	maxTitleLength = 200
	maxSlugLength  = 120
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Input is a create or update body. Nil fields are left untouched on update.
type Input struct {
	Title     *string   `json:"title"`
	Slug      *string   `json:"slug"`
	Summary   *string   `json:"summary"`
	Body      *string   `json:"body"`
	URL       *string   `json:"url"   binding:"omitempty,http_url|len=0"`
	Cover     *string   `json:"cover" binding:"omitempty,http_url|len=0"`
	Tags      *[]string `json:"tags"`
	Order     *int      `json:"order"`
	Published *bool     `json:"published"`
}

// View is an item as served, with its markdown body rendered.
type View struct {
	models.ContentItem
	HTML string `json:"html,omitempty"`
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) List(ctx context.Context, kind models.ContentKind, includeDrafts bool) ([]View, error) {
	items, err := s.store.List(ctx, kind, !includeDrafts)
	if err != nil {
		return nil, err
	}
	out := make([]View, len(items))
	for i, item := range items {
		out[i] = render(item)
	}
	return out, nil
}

// Get returns one item by id or slug. Drafts are hidden unless
// includeDrafts is set.
func (s *Service) Get(ctx context.Context, kind models.ContentKind, idOrSlug string, includeDrafts bool) (View, error) {
	item, err := s.store.Find(ctx, kind, idOrSlug)
	if err != nil {
		return View{}, err
	}
	if item == nil || (!item.Published && !includeDrafts) {
		return View{}, apperr.NotFound("%s not found", kind)
	}
	return render(*item), nil
}

func (s *Service) Create(ctx context.Context, kind models.ContentKind, in Input) (View, error) {
	if in.Title == nil {
		return View{}, apperr.Validation("title is required")
	}
	if err := normalize(&in); err != nil {
		return View{}, err
	}

	item := models.ContentItem{Kind: kind, Tags: []string{}}
	apply(&item, in)
	item.Touch(s.now().UTC())
	if err := s.store.Insert(ctx, item); err != nil {
		return View{}, mapSlugErr(err)
	}
	return render(item), nil
}

func (s *Service) Update(ctx context.Context, kind models.ContentKind, id string, in Input) (View, error) {
	if err := normalize(&in); err != nil {
		return View{}, err
	}
	set := toSet(in)
	set["updated_at"] = s.now().UTC()
	item, err := s.store.Update(ctx, kind, id, set)
	if err != nil {
		return View{}, mapSlugErr(err)
	}
	if item == nil {
		return View{}, apperr.NotFound("%s not found", kind)
	}
	return render(*item), nil
}

// Delete removes an item and returns what was removed.
func (s *Service) Delete(ctx context.Context, kind models.ContentKind, id string) (models.ContentItem, error) {
	item, err := s.store.Find(ctx, kind, id)
	if err != nil {
		return models.ContentItem{}, err
	}
	if item == nil {
		return models.ContentItem{}, apperr.NotFound("%s not found", kind)
	}
	ok, err := s.store.Delete(ctx, kind, item.ID)
	if err != nil {
		return models.ContentItem{}, err
	}
	if !ok {
		return models.ContentItem{}, apperr.NotFound("%s not found", kind)
	}
	return *item, nil
}

// RecordView bumps the view counter.
func (s *Service) RecordView(ctx context.Context, kind models.ContentKind, id string) error {
	return s.store.IncViews(ctx, kind, id)
}

func render(item models.ContentItem) View {
	v := View{ContentItem: item}
	if item.Tags == nil {
		v.Tags = []string{}
	}
	if item.Body != "" {
		v.HTML = markdown.Render(item.Body)
	}
	return v
}

func mapSlugErr(err error) error {
	if errors.Is(err, errSlugTaken) {
		return apperr.Validation("slug is already in use")
	}
	return err
}

func normalize(in *Input) error {
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(in.Title)
	trim(in.Slug)
	trim(in.Summary)
	trim(in.URL)
	trim(in.Cover)

	if in.Title != nil {
		if *in.Title == "" {
			return apperr.Validation("title must not be empty")
		}
		if len(*in.Title) > maxTitleLength {
			return apperr.Validation("title must be at most %d characters", maxTitleLength)
		}
	}
	if in.Slug != nil && *in.Slug != "" {
		*in.Slug = strings.ToLower(*in.Slug)
		if len(*in.Slug) > maxSlugLength || !slugPattern.MatchString(*in.Slug) {
			return apperr.Validation("slug must be lowercase letters, digits and dashes")
		}
	}
	if in.Tags != nil {
		tags := make([]string, 0, len(*in.Tags))
		for _, t := range *in.Tags {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		in.Tags = &tags
	}
	return nil
}

func apply(item *models.ContentItem, in Input) {
	if in.Title != nil {
		item.Title = *in.Title
	}
	if in.Slug != nil {
		item.Slug = *in.Slug
	}
	if in.Summary != nil {
		item.Summary = *in.Summary
	}
	if in.Body != nil {
		item.Body = *in.Body
	}
	if in.URL != nil {
		item.URL = *in.URL
	}
	if in.Cover != nil {
		item.Cover = *in.Cover
	}
	if in.Tags != nil {
		item.Tags = *in.Tags
	}
	if in.Order != nil {
		item.Order = *in.Order
	}
	if in.Published != nil {
		item.Published = *in.Published
	}
}

func toSet(in Input) bson.M {
	set := bson.M{}
	if in.Title != nil {
		set["title"] = *in.Title
	}
	if in.Slug != nil {
		set["slug"] = *in.Slug
	}
	if in.Summary != nil {
		set["summary"] = *in.Summary
	}
	if in.Body != nil {
		set["body"] = *in.Body
	}
	if in.URL != nil {
		set["url"] = *in.URL
	}
	if in.Cover != nil {
		set["cover"] = *in.Cover
	}
	if in.Tags != nil {
		set["tags"] = *in.Tags
	}
	if in.Order != nil {
		set["order"] = *in.Order
	}
	if in.Published != nil {
		set["published"] = *in.Published
	}
	return set
}
