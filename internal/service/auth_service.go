package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/reimbursement-service/internal/auth"
	"github.com/spec-kit/reimbursement-service/internal/config"
	"github.com/spec-kit/reimbursement-service/internal/domain"
	"github.com/spec-kit/reimbursement-service/internal/repository"
	apperrors "github.com/spec-kit/reimbursement-service/pkg/util"
)

// CredentialService handles employee registration and login.
type CredentialService struct {
	users      repository.UserStore
	bcryptCost int
	logger     *zap.Logger
}

// Credentials is the registration/login input.
type Credentials struct {
	Username string
	Password string
}

// NewCredentialService builds the service.
func NewCredentialService(cfg config.AuthConfig, users repository.UserStore, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		users:      users,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Register validates the candidate credentials, enforces username
// uniqueness and persists a new employee account. The returned profile
// never carries the plaintext password; the hash is stripped at the API
// boundary.
func (s *CredentialService) Register(ctx context.Context, creds Credentials) (*domain.User, error) {
	if err := validateCredentials(creds); err != nil {
		s.logger.Warn("registration validation failed", zap.String("username", creds.Username), zap.Error(err))
		return nil, err
	}

	if _, err := s.users.GetUserByUsername(ctx, creds.Username); err == nil {
		s.logger.Warn("username already exists", zap.String("username", creds.Username))
		return nil, apperrors.NewConflict("username already exists", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("username lookup failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(creds.Password, s.bcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     creds.Username,
		PasswordHash: hash,
		Role:         domain.RoleEmployee,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("username already exists", nil)
		}
		s.logger.Error("user creation failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user registered",
		zap.String("username", user.Username),
		zap.String("user_id", user.ID),
	)
	return user, nil
}

// Login authenticates an employee by username and password.
func (s *CredentialService) Login(ctx context.Context, creds Credentials) (*domain.User, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}

	user, err := s.users.GetUserByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("login for unknown username", zap.String("username", creds.Username))
			return nil, apperrors.NewNotFound("no such username", nil)
		}
		s.logger.Error("user lookup failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, creds.Password); err != nil {
		s.logger.Warn("login password mismatch", zap.String("username", creds.Username))
		return nil, apperrors.NewAuthenticationError("password does not match")
	}

	s.logger.Info("user logged in", zap.String("username", user.Username))
	return user, nil
}

const (
	usernameMinLen = 3
	usernameMaxLen = 16
	passwordMinLen = 3
)

// validateCredentials enforces the registration rules: username 3-16
// characters; password at least 3 characters, letters and digits only,
// with at least one digit. The first violated rule wins.
func validateCredentials(c Credentials) error {
	if len(c.Username) < usernameMinLen || len(c.Username) > usernameMaxLen {
		return apperrors.NewValidationError("username must be 3 to 16 characters long", nil)
	}
	if len(c.Password) < passwordMinLen {
		return apperrors.NewValidationError("password must be at least 3 characters long", nil)
	}
	hasDigit := false
	for _, r := range c.Password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return apperrors.NewValidationError("password may only contain letters and digits", nil)
		}
	}
	if !hasDigit {
		return apperrors.NewValidationError("password must include a number", nil)
	}
	return nil
}
