// Package identity registers users, checks their credentials and issues the
// bearer tokens the HTTP and WebSocket surfaces accept.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	usersCollection   = "users"
	byEmailCollection = "users_by_email"
)

// Provider is the identity capability. When Available is false every other
// method fails with apperr.ErrUnavailable.
type Provider interface {
	Available() bool
	Register(ctx context.Context, email, password string) (domain.UserID, string, error)
	Login(ctx context.Context, email, password string) (domain.UserID, string, error)
	Verify(ctx context.Context, token string) (domain.UserID, error)
	Profile(ctx context.Context, uid domain.UserID) (domain.Profile, error)
}

type emailIndex struct {
	UID domain.UserID `json:"uid"`
}

type Service struct {
	docs   app.DocStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithCost sets the bcrypt cost.
func WithCost(cost int) Option { return func(s *Service) { s.cost = cost } }

func NewService(docs app.DocStore, secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		docs:   docs,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Available() bool {
	return len(s.secret) > 0 && s.docs != nil && s.docs.Available()
}

func (s *Service) Register(ctx context.Context, email, password string) (domain.UserID, string, error) {
	if !s.Available() {
		return "", "", apperr.ErrUnavailable
	}
	u, err := domain.NewUser(email, password)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	u.PasswordHash, err = bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}

	if err := s.docs.Create(ctx, byEmailCollection, u.Email, emailIndex{UID: u.ID}); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return "", "", fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
		return "", "", err
	}
	if err := s.docs.Create(ctx, usersCollection, string(u.ID), u); err != nil {
		// release the email so a retry is not refused as a duplicate
		if derr := s.docs.Delete(ctx, byEmailCollection, u.Email); derr != nil {
			log.Warn().Err(derr).Str("module", "identity").Str("email", u.Email).Msg("email index left behind")
		}
		return "", "", err
	}

	log.Info().Str("module", "identity").Str("uid", string(u.ID)).Msg("user registered")
	return u.ID, s.issue(u.ID), nil
}

func (s *Service) Login(ctx context.Context, email, password string) (domain.UserID, string, error) {
	if !s.Available() {
		return "", "", apperr.ErrUnavailable
	}
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return "", "", apperr.ErrUnauthenticated
	}
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return "", "", err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		log.Debug().Str("module", "identity").Str("uid", string(u.ID)).Msg("bad password")
		return "", "", apperr.ErrUnauthenticated
	}
	return u.ID, s.issue(u.ID), nil
}

func (s *Service) Verify(_ context.Context, token string) (domain.UserID, error) {
	if !s.Available() {
		return "", apperr.ErrUnavailable
	}
	uid, err := parseToken(s.secret, token, s.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	return domain.UserID(uid), nil
}

func (s *Service) Profile(ctx context.Context, uid domain.UserID) (domain.Profile, error) {
	if !s.Available() {
		return domain.Profile{}, apperr.ErrUnavailable
	}
	var u domain.User
	if err := s.docs.Get(ctx, usersCollection, string(uid), &u); err != nil {
		return domain.Profile{}, err
	}
	return u.Profile(), nil
}

func (s *Service) userByEmail(ctx context.Context, email string) (*domain.User, error) {
	var idx emailIndex
	if err := s.docs.Get(ctx, byEmailCollection, email, &idx); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, err
	}
	var u domain.User
	if err := s.docs.Get(ctx, usersCollection, string(idx.UID), &u); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) issue(uid domain.UserID) string {
	return signToken(s.secret, string(uid), s.now().Add(s.ttl))
}
