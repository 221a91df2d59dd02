// Package users manages platform accounts and credential checks.
package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/internal/middleware"
	"github.com/aidgrid/platform/pkg/logger"
)

// Service manages user accounts and authentication.
type Service struct {
	store    storage.UserStore
	secret   []byte
	tokenTTL time.Duration
	log      *logger.Logger
}

// New constructs a user service. The secret signs issued tokens.
func New(store storage.UserStore, secret []byte, tokenTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{store: store, secret: secret, tokenTTL: tokenTTL, log: log}
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, email, name string, role user.Role, organization, password string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, fmt.Errorf("a valid email is required")
	}
	if name == "" {
		return user.User{}, fmt.Errorf("name is required")
	}
	if !role.Valid() {
		return user.User{}, fmt.Errorf("unknown role %q", role)
	}
	if role == user.RoleAdmin {
		return user.User{}, fmt.Errorf("admin accounts cannot self-register")
	}
	if len(password) < 8 {
		return user.User{}, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Email:        email,
		Name:         name,
		Role:         role,
		Organization: strings.TrimSpace(organization),
		PasswordHash: string(hash),
		Active:       true,
	})
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", created.ID).WithField("role", string(role)).Info("user registered")
	return created, nil
}

// Authenticate verifies credentials and issues a signed token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", user.User{}, fmt.Errorf("invalid credentials")
	}
	if !u.Active {
		return "", user.User{}, fmt.Errorf("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", user.User{}, fmt.Errorf("invalid credentials")
	}

	now := time.Now()
	claims := &middleware.Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", user.User{}, fmt.Errorf("sign token: %w", err)
	}

	s.log.WithField("user_id", u.ID).Debug("user authenticated")
	return token, u, nil
}

// Get retrieves a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns users, optionally filtered by role.
func (s *Service) List(ctx context.Context, role user.Role) ([]user.User, error) {
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	return s.store.ListUsers(ctx, role)
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if u.Active == active {
		return u, nil
	}
	u.Active = active
	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).WithField("active", active).Info("user state changed")
	return u, nil
}

// UpdateProfile updates mutable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id string, name, organization *string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if name != nil {
		if trimmed := strings.TrimSpace(*name); trimmed != "" {
			u.Name = trimmed
		} else {
			return user.User{}, fmt.Errorf("name cannot be empty")
		}
	}
	if organization != nil {
		u.Organization = strings.TrimSpace(*organization)
	}
	return s.store.UpdateUser(ctx, u)
}

// ChangeRole sets a user's role. Only admins may call this; the handler
// enforces the caller's role.
func (s *Service) ChangeRole(ctx context.Context, id string, role user.Role) (user.User, error) {
	if !role.Valid() {
		return user.User{}, fmt.Errorf("unknown role %q", role)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if u.Role == role {
		return u, nil
	}
	u.Role = role
	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).WithField("role", string(role)).Info("user role changed")
	return u, nil
}
