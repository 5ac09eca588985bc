package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/repositories"
	"github.com/rkbansal/postify/services"
	"go.uber.org/zap"
)

// googleNamespace derives stable user ids when there is no user store
var googleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://accounts.google.com"))

// Profile is the identity returned by the OAuth provider
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Service manages user accounts
type Service struct {
	repo   repositories.UserRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a user service. repo may be nil when running without a database.
func NewService(repo repositories.UserRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Persistent reports whether users are stored
func (s *Service) Persistent() bool {
	return s.repo != nil
}

// Login creates the user on first sign-in and refreshes the profile afterwards.
// Without a store it returns an unsaved user whose id is derived from the subject.
func (s *Service) Login(ctx context.Context, p Profile) (*models.User, error) {
	if !s.Persistent() {
		user := models.NewUser(p.Subject, p.Email, p.Name, p.Picture)
		user.ID = uuid.NewSHA1(googleNamespace, []byte(p.Subject))
		return user, nil
	}

	user, err := s.repo.GetByGoogleID(ctx, p.Subject)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		user = models.NewUser(p.Subject, p.Email, p.Name, p.Picture)
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, services.WrapInternal("failed to create user", err)
		}
		s.logger.Info("user created", zap.String("user_id", user.ID.String()))
		return user, nil
	case err != nil:
		return nil, services.WrapInternal("failed to look up user", err)
	}

	user.Email = p.Email
	user.Name = p.Name
	user.Picture = p.Picture
	user.RecordLogin(s.now())
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, services.WrapInternal("failed to update user", err)
	}
	return user, nil
}

// Get returns a stored user
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if !s.Persistent() {
		return nil, services.ErrUserStoreUnavailable
	}
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, services.WrapInternal("failed to get user", err)
	}
	return user, nil
}

// UpdatePreferences replaces the user's generation defaults
func (s *Service) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.UserPreferences) (*models.UserPreferences, error) {
	if !s.Persistent() {
		return nil, services.ErrUserStoreUnavailable
	}
	if prefs.DefaultHashtags == nil {
		prefs.DefaultHashtags = []string{}
	}
	err := s.repo.UpdatePreferences(ctx, id, prefs)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, services.WrapInternal("failed to update preferences", err)
	}
	return &prefs, nil
}
