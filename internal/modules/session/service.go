package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
)

const defaultListLimit = 200

// Service is the Session/TTL Store. Expiry is enforced on every read, so
// correctness does not depend on when the TTL index removes records.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create grants owner a session of kind for ttl. It fails with
// DuplicateOwner while an unexpired session exists for the same owner; an
// expired one is replaced atomically.
func (s *Service) Create(ctx context.Context, kind models.SessionKind, owner string, payload models.SessionPayload, ttl time.Duration) (models.EphemeralSession, error) {
	owner = strings.TrimSpace(owner)
	if err := validate(kind, owner); err != nil {
		return models.EphemeralSession{}, err
	}
	if !payload.Matches(kind) {
		return models.EphemeralSession{}, apperr.Validation("payload does not match session kind %s", kind)
	}
	if ttl <= 0 {
		return models.EphemeralSession{}, apperr.Validation("session ttl must be positive")
	}

	now := s.now().UTC()
	sess := models.EphemeralSession{
		ID:        uuid.NewString(),
		Kind:      kind,
		Owner:     owner,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	err := s.store.Insert(ctx, sess)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, errOwnerTaken) {
		return models.EphemeralSession{}, err
	}

	replaced, err := s.store.TakeOverExpired(ctx, sess, now)
	if err != nil {
		return models.EphemeralSession{}, err
	}
	if replaced == nil {
		return models.EphemeralSession{}, apperr.DuplicateOwner("an active %s session already exists", kind)
	}
	return *replaced, nil
}

// Get returns the owner's session, or NotFound when it is absent or expired.
func (s *Service) Get(ctx context.Context, kind models.SessionKind, owner string) (models.EphemeralSession, error) {
	owner = strings.TrimSpace(owner)
	if err := validate(kind, owner); err != nil {
		return models.EphemeralSession{}, err
	}
	now := s.now().UTC()
	sess, err := s.store.FindActive(ctx, kind, owner, now)
	if err != nil {
		return models.EphemeralSession{}, err
	}
	if sess == nil || sess.Expired(now) {
		return models.EphemeralSession{}, apperr.NotFound("%s session not found", kind)
	}
	return *sess, nil
}

// Update replaces the payload of an unexpired session. Expiry is unchanged.
func (s *Service) Update(ctx context.Context, kind models.SessionKind, owner string, payload models.SessionPayload) (models.EphemeralSession, error) {
	owner = strings.TrimSpace(owner)
	if err := validate(kind, owner); err != nil {
		return models.EphemeralSession{}, err
	}
	if !payload.Matches(kind) {
		return models.EphemeralSession{}, apperr.Validation("payload does not match session kind %s", kind)
	}
	sess, err := s.store.UpdatePayload(ctx, kind, owner, payload, s.now().UTC())
	if err != nil {
		return models.EphemeralSession{}, err
	}
	if sess == nil {
		return models.EphemeralSession{}, apperr.NotFound("%s session not found", kind)
	}
	return *sess, nil
}

// Delete removes the owner's session, expired or not.
func (s *Service) Delete(ctx context.Context, kind models.SessionKind, owner string) error {
	owner = strings.TrimSpace(owner)
	if err := validate(kind, owner); err != nil {
		return err
	}
	found, err := s.store.Delete(ctx, kind, owner)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("%s session not found", kind)
	}
	return nil
}

// List returns unexpired sessions newest first. An empty kind lists all.
func (s *Service) List(ctx context.Context, kind models.SessionKind, limit int) ([]models.EphemeralSession, error) {
	if kind != "" && !kind.Valid() {
		return nil, apperr.Validation("unknown session kind %q", kind)
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	now := s.now().UTC()
	items, err := s.store.ListActive(ctx, kind, now, limit)
	if err != nil {
		return nil, err
	}
	live := items[:0]
	for _, it := range items {
		if !it.Expired(now) {
			live = append(live, it)
		}
	}
	return live, nil
}

// Sweep deletes expired records. The TTL index does the same in the
// background; this keeps storage bounded when that monitor lags.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now().UTC())
}

func validate(kind models.SessionKind, owner string) error {
	if !kind.Valid() {
		return apperr.Validation("unknown session kind %q", kind)
	}
	if strings.TrimSpace(owner) == "" {
		return apperr.Validation("session owner is required")
	}
	return nil
}
