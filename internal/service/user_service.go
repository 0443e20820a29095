package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/service/auth"
	"github.com/phrazzld/fileserver-api/internal/store"
)

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	IsStaff  bool
}

// UserService provides account operations.
type UserService interface {
	// Register creates an active user. Returns store.ErrUsernameExists or
	// store.ErrEmailExists on conflicts and domain validation errors for bad input.
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)

	// Authenticate checks credentials. Returns ErrInvalidCredentials or ErrInactiveUser.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)

	// GetUser returns store.ErrUserNotFound for unknown ids.
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// VisibleUsers returns every user for staff and only the requester otherwise.
	VisibleUsers(ctx context.Context, requester *domain.User) ([]*domain.User, error)
}

// UserServiceImpl implements UserService.
type UserServiceImpl struct {
	userStore store.UserStore
	verifier  auth.PasswordVerifier
	logger    *slog.Logger
}

var _ UserService = (*UserServiceImpl)(nil)

// NewUserService creates a new UserService.
func NewUserService(userStore store.UserStore, verifier auth.PasswordVerifier, logger *slog.Logger) *UserServiceImpl {
	if userStore == nil {
		panic("userStore cannot be nil")
	}
	if verifier == nil {
		panic("verifier cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		userStore: userStore,
		verifier:  verifier,
		logger:    logger.With(slog.String("component", "user_service")),
	}
}

// Register implements UserService.
func (s *UserServiceImpl) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(in.Username, in.Email, in.Password, in.IsStaff)
	if err != nil {
		log.Debug("rejected registration", slog.String("error", err.Error()))
		return nil, err
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		if store.IsDuplicateError(err) {
			log.Debug("registration conflict",
				slog.String("username", in.Username),
				slog.String("error", err.Error()))
		} else {
			log.Error("failed to create user",
				slog.String("username", in.Username),
				slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	log.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.Bool("is_staff", user.IsStaff))
	return user, nil
}

// Authenticate implements UserService.
func (s *UserServiceImpl) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("login for unknown username")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			log.Debug("login with wrong password", slog.String("user_id", user.ID.String()))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// GetUser implements UserService.
func (s *UserServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

// VisibleUsers implements UserService.
func (s *UserServiceImpl) VisibleUsers(ctx context.Context, requester *domain.User) ([]*domain.User, error) {
	if !requester.IsStaff {
		return []*domain.User{requester}, nil
	}
	users, err := s.userStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
