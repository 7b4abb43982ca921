package tempmail

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"go.uber.org/zap"
)

const sourcePrefix = "tempmail:"

type Provider interface {
	CreateMailbox(ctx context.Context) (Mailbox, error)
	Messages(ctx context.Context, token string) ([]Message, error)
	DeleteMailbox(ctx context.Context, mb Mailbox) error
}

type Limiter interface {
	CheckAndIncrement(ctx context.Context, sourceID string, limit int) (int, error)
	Count(ctx context.Context, sourceID string) (int, error)
}

type Sessions interface {
	Create(ctx context.Context, kind models.SessionKind, owner string, payload models.SessionPayload, ttl time.Duration) (models.EphemeralSession, error)
	Get(ctx context.Context, kind models.SessionKind, owner string) (models.EphemeralSession, error)
	Delete(ctx context.Context, kind models.SessionKind, owner string) error
}

// Status describes the caller's mailbox and quota.
type Status struct {
	Active    bool       `json:"active"`
	Address   string     `json:"address,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
}

type Service struct {
	provider Provider
	limiter  Limiter
	sessions Sessions
	limit    int
	ttl      time.Duration
	logger   *zap.Logger
}

func NewService(provider Provider, limiter Limiter, sessions Sessions, dailyLimit int, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		limiter:  limiter,
		sessions: sessions,
		limit:    dailyLimit,
		ttl:      ttl,
		logger:   logger.Named("TempMailService"),
	}
}

// Create provisions a mailbox for ip. An active mailbox is a DuplicateOwner
// conflict unless renew is set, in which case it is replaced once quota has
// been consumed. Quota is consumed before the provider is called.
func (s *Service) Create(ctx context.Context, ip string, renew bool) (Status, error) {
	existing, err := s.sessions.Get(ctx, models.SessionTempMail, ip)
	active := err == nil
	switch {
	case active && !renew:
		return Status{}, apperr.DuplicateOwner("an active temp mail session already exists")
	case !active && !errors.Is(err, apperr.ErrNotFound):
		return Status{}, err
	}

	used, err := s.limiter.CheckAndIncrement(ctx, sourcePrefix+ip, s.limit)
	if err != nil {
		return Status{}, err
	}
	if active {
		if err := s.discard(ctx, existing); err != nil {
			return Status{}, err
		}
	}

	mb, err := s.provider.CreateMailbox(ctx)
	if err != nil {
		return Status{}, err
	}

	payload := models.SessionPayload{TempMail: &models.TempMailPayload{
		AccountID: mb.ID,
		Address:   mb.Address,
		Password:  mb.Password,
		Token:     mb.Token,
	}}
	sess, err := s.sessions.Create(ctx, models.SessionTempMail, ip, payload, s.ttl)
	if err != nil {
		s.dropMailbox(ctx, mb)
		return Status{}, err
	}
	return s.status(sess, used), nil
}

// Status reports the active mailbox, if any, and today's usage.
func (s *Service) Status(ctx context.Context, ip string) (Status, error) {
	used, err := s.limiter.Count(ctx, sourcePrefix+ip)
	if err != nil {
		return Status{}, err
	}
	sess, err := s.sessions.Get(ctx, models.SessionTempMail, ip)
	if errors.Is(err, apperr.ErrNotFound) {
		return Status{Used: used, Limit: s.limit}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return s.status(sess, used), nil
}

// Messages lists the inbox of ip's mailbox.
func (s *Service) Messages(ctx context.Context, ip string) ([]Message, error) {
	sess, err := s.sessions.Get(ctx, models.SessionTempMail, ip)
	if err != nil {
		return nil, err
	}
	return s.provider.Messages(ctx, sess.Payload.TempMail.Token)
}

// Delete ends ip's session. Quota already consumed is not refunded.
func (s *Service) Delete(ctx context.Context, ip string) error {
	sess, err := s.sessions.Get(ctx, models.SessionTempMail, ip)
	if err != nil {
		return err
	}
	return s.discard(ctx, sess)
}

func (s *Service) discard(ctx context.Context, sess models.EphemeralSession) error {
	if err := s.sessions.Delete(ctx, models.SessionTempMail, sess.Owner); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	s.dropMailbox(ctx, mailboxOf(sess))
	return nil
}

// dropMailbox deletes the provider account. Failures are logged; the
// account expires on the provider side anyway.
func (s *Service) dropMailbox(ctx context.Context, mb Mailbox) {
	if err := s.provider.DeleteMailbox(ctx, mb); err != nil {
		s.logger.Warn("delete provider mailbox failed", zap.String("address", mb.Address), zap.Error(err))
	}
}

func (s *Service) status(sess models.EphemeralSession, used int) Status {
	created, expires := sess.CreatedAt, sess.ExpiresAt
	return Status{
		Active:    true,
		Address:   sess.Payload.TempMail.Address,
		CreatedAt: &created,
		ExpiresAt: &expires,
		Used:      used,
		Limit:     s.limit,
	}
}

func mailboxOf(sess models.EphemeralSession) Mailbox {
	p := sess.Payload.TempMail
	if p == nil {
		return Mailbox{}
	}
	return Mailbox{ID: p.AccountID, Address: p.Address, Password: p.Password, Token: p.Token}
}
