package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/DeliveryGo/internal/auth"
	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

// maxPasswordLength is the longest password bcrypt accepts.
const maxPasswordLength = 72

const badCredentialsMessage = "incorrect email or password"

// TokenIssuer issues access tokens for a user ID.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// UserService implements the business logic for accounts and login.
type UserService struct {
	repo   repository.UserRepository
	tokens TokenIssuer
	logger *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo repository.UserRepository, tokens TokenIssuer, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, logger: logger}
}

// CreateUserInput holds the parameters for creating an account. Register
// ignores the flags and always creates an active regular user.
type CreateUserInput struct {
	Email       string
	Password    string
	FullName    string
	Phone       string
	IsActive    *bool
	IsSuperuser bool
}

// UpdateUserInput holds the parameters for updating an account. Nil fields are
// left unchanged.
type UpdateUserInput struct {
	Email       *string
	Password    *string
	FullName    *string
	Phone       *string
	IsActive    *bool
	IsSuperuser *bool
}

// Register creates an active, non-admin account.
func (s *UserService) Register(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	input.IsActive = nil
	input.IsSuperuser = false
	return s.CreateUser(ctx, input)
}

// CreateUser creates an account with the given flags.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.AlreadyExists("user", "email", email)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(input.FullName),
		Phone:        strings.TrimSpace(input.Phone),
		IsActive:     active,
		IsSuperuser:  input.IsSuperuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user created",
		slog.String("user_id", user.ID),
		slog.Bool("is_superuser", user.IsSuperuser),
	)
	return user, nil
}

// Authenticate checks email and password. Unknown emails and wrong passwords
// both yield InvalidCredentials; a disabled account yields Inactive.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidCredentials(badCredentialsMessage)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidCredentials(badCredentialsMessage)
	}
	if !user.IsActive {
		return nil, apperrors.Inactive()
	}
	return user, nil
}

// Login authenticates the user and issues an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue access token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return token, user, nil
}

// CurrentUser resolves a token subject to an active user. A subject whose user
// no longer exists yields NotFound.
func (s *UserService) CurrentUser(ctx context.Context, subject string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.Inactive()
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// ListUsers returns one window of users and the total count.
func (s *UserService) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, int, error) {
	users, total, err := s.repo.List(ctx, repository.ListParams{Skip: skip, Limit: limit})
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// UpdateUser applies the set fields. A new password is re-hashed.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if input.Email != nil {
		email, err := normalizeEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(email, user.Email) {
			if _, err := s.repo.GetByEmail(ctx, email); err == nil {
				return nil, apperrors.AlreadyExists("user", "email", email)
			} else if !errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("check existing user: %w", err)
			}
		}
		user.Email = email
	}
	if input.Password != nil {
		if err := validatePassword(*input.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.IsSuperuser != nil {
		user.IsSuperuser = *input.IsSuperuser
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user updated", slog.String("user_id", user.ID))
	return user, nil
}

// DeleteUser removes the user together with their addresses and orders and
// returns the removed user.
func (s *UserService) DeleteUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user for delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}

	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", id))
	return user, nil
}

// EnsureSuperuser creates the bootstrap admin account unless a user with that
// email already exists. It reports whether an account was created.
func (s *UserService) EnsureSuperuser(ctx context.Context, email, password string) (bool, error) {
	_, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return false, fmt.Errorf("look up superuser: %w", err)
	}

	if _, err := s.CreateUser(ctx, CreateUserInput{
		Email:       email,
		Password:    password,
		FullName:    "Administrator",
		IsSuperuser: true,
	}); err != nil {
		return false, fmt.Errorf("create superuser: %w", err)
	}
	return true, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperrors.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.Validation("email must be a valid email address")
	}
	return email, nil
}

func validatePassword(password string) error {
	if password == "" {
		return apperrors.Validation("password is required")
	}
	if len(password) > maxPasswordLength {
		return apperrors.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordLength))
	}
	return nil
}
