package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/avolkov/mailhub/internal/domain"
	"github.com/avolkov/mailhub/internal/repository"
	"github.com/avolkov/mailhub/pkg/config"
	"github.com/avolkov/mailhub/pkg/crypto"
	jwtpkg "github.com/avolkov/mailhub/pkg/jwt"
)

// Service handles registration, login and bearer-token authorization.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

var (
	// ErrInvalidCredentials is returned for both unknown-username and
	// wrong-password logins so the response does not reveal which check
	// failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is the single outcome for every token failure: bad
	// signature, malformed payload, expired token, or a subject that no
	// longer resolves to a user.
	ErrUnauthorized = errors.New("authentication failed")

	errUsernameRequired = errors.New("username is required")
	errPasswordRequired = errors.New("password is required")
)

// RegisterInput carries registration attributes. The caller never supplies an
// id or a password hash.
type RegisterInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Token is the issued credential returned by Login.
type Token struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   time.Duration `json:"-"`
}

// Register creates a new account. Username uniqueness is enforced atomically
// by the store; a duplicate surfaces as repository.ErrConflict.
func (s Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, errUsernameRequired
	}
	if input.Password == "" {
		return nil, errPasswordRequired
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        strings.TrimSpace(input.Email),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates a username/password pair and issues a bearer token
// whose subject is the username.
func (s Service) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	ttl := s.cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = jwtpkg.DefaultTTL
	}
	access, err := jwtpkg.GenerateToken(user.Username, s.cfg.JWTSecret, ttl)
	if err != nil {
		return Token{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return Token{AccessToken: access, TokenType: "Bearer", ExpiresIn: ttl}, nil
}

// Authorize validates a bearer token and resolves its subject to a stored
// user. All failure causes collapse to ErrUnauthorized; the internal reason
// is logged, never returned.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrUnauthorized
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		s.logger.Debug("token subject unknown", "subject", claims.Subject)
		return nil, ErrUnauthorized
	}
	return user, nil
}

// GetByUsername looks up a single account for the directory endpoint.
func (s Service) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}

// Search returns accounts whose first and last names contain the given
// fragments, case-insensitively.
func (s Service) Search(ctx context.Context, firstName, lastName string) ([]domain.User, error) {
	return s.users.SearchUsers(ctx, firstName, lastName)
}
