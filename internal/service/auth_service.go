package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"credit_ledger/internal/model"
	"credit_ledger/internal/repository"
	"credit_ledger/internal/session"
	"credit_ledger/internal/utils"
)

var (
	// ErrValidation wraps all malformed-input failures; the wrapped message
	// is safe to show to the client.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is deliberately generic: it covers unknown user,
	// wrong password, OAuth-only accounts and throttled attempts alike, so
	// nothing can be enumerated from the response.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrStoreUnavailable = errors.New("store unavailable")
)

var emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)

// StoreHealth reports whether the backing store is currently reachable.
type StoreHealth interface {
	Healthy() bool
}

// AuthService provides registration, login and logout
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Logout(token string)
}

type authService struct {
	userRepo repository.UserRepository
	sessions session.Registry
	health   StoreHealth
	limiter  *loginLimiter

	// Seed admin replaces the old hardcoded credential pair: configured at
	// startup, hashed once, and checked before any store access so it keeps
	// working when the store is down.
	seedAdminUsername string
	seedAdminHash     string
}

// NewAuthService creates a new AuthService. An empty seed admin password
// disables the seed admin entirely.
func NewAuthService(userRepo repository.UserRepository, sessions session.Registry, health StoreHealth, seedAdminUsername, seedAdminPassword string) AuthService {
	s := &authService{
		userRepo: userRepo,
		sessions: sessions,
		health:   health,
		limiter:  newLoginLimiter(),
	}
	if seedAdminUsername != "" && seedAdminPassword != "" {
		hash, err := utils.HashPassword(seedAdminPassword)
		if err != nil {
			log.Printf("failed to hash seed admin password, seed admin disabled: %v", err)
			return s
		}
		s.seedAdminUsername = normalizeUsername(seedAdminUsername)
		s.seedAdminHash = hash
	}
	return s
}

// normalizeUsername lowercases and strips all whitespace
func normalizeUsername(username string) string {
	return strings.ToLower(strings.Join(strings.Fields(username), ""))
}

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Register creates a new local account
func (s *authService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	username := normalizeUsername(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if len(username) < 3 {
		return nil, validationErr("username must be at least 3 characters")
	}
	if !emailRE.MatchString(email) {
		return nil, validationErr("email address is not valid")
	}
	if len(req.Password) < 6 {
		return nil, validationErr("password must be at least 6 characters")
	}
	if req.Password != req.ConfirmPassword {
		return nil, validationErr("passwords do not match")
	}

	if !s.health.Healthy() {
		return nil, ErrStoreUnavailable
	}

	// Pre-read for a friendly duplicate error. Two concurrent registrations
	// can both pass this check; the unique constraint in the store is the
	// real guarantee and Create maps it to the same duplicate errors.
	if existing, err := s.userRepo.FindByIdentifier(ctx, username); err != nil {
		return nil, fmt.Errorf("failed to check existing username: %w", err)
	} else if existing != nil {
		return nil, repository.ErrDuplicateUsername
	}
	if existing, err := s.userRepo.FindByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to check existing email: %w", err)
	} else if existing != nil {
		return nil, repository.ErrDuplicateEmail
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		Role:         model.RoleUser,
		Provider:     model.ProviderLocal,
		CreatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates a user and issues a session token
func (s *authService) Login(ctx context.Context, username, password string) (*session.Session, error) {
	uname := normalizeUsername(username)

	// Seed admin never touches the store.
	if s.seedAdminUsername != "" && uname == s.seedAdminUsername {
		if utils.CheckPasswordHash(password, s.seedAdminHash) {
			return s.sessions.Issue(0, s.seedAdminUsername, model.RoleAdmin, model.ProviderLocal)
		}
		return nil, ErrInvalidCredentials
	}

	// Throttled attempts get the same answer as bad credentials.
	if !s.limiter.allow(uname) {
		log.Printf("login rate limit hit for %q", uname)
		return nil, ErrInvalidCredentials
	}

	if !s.health.Healthy() {
		return nil, ErrStoreUnavailable
	}

	user, err := s.userRepo.FindByIdentifier(ctx, uname)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == nil {
		// OAuth-only account; password login is never valid for it.
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		log.Printf("failed to record last login for user %d: %v", user.ID, err)
	}

	return s.sessions.Issue(user.ID, user.Username, user.Role, model.ProviderLocal)
}

// Logout revokes the session; revoking an unknown token is a no-op
func (s *authService) Logout(token string) {
	s.sessions.Revoke(token)
}
