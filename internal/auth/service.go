package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"grocery/internal/logging"
	"grocery/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("auth: incorrect username or password")
	ErrInvalidSignUp      = errors.New("auth: invalid sign-up")
)

const minPasswordLength = 6

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Session is what a successful sign-up or login hands back.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Service struct {
	users  UserStore
	issuer *Issuer
	log    *zap.Logger
}

func NewService(users UserStore, issuer *Issuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, issuer: issuer, log: logger}
}

func (s *Service) SignUp(ctx context.Context, username, password string, role models.Role) (*Session, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, fmt.Errorf("%w: username is required", ErrInvalidSignUp)
	case len(password) < minPasswordLength:
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignUp, minPasswordLength)
	case role != models.RoleUser:
		// Admin accounts are provisioned out of band; no HTTP route serves them.
		return nil, fmt.Errorf("%w: role must be %q", ErrInvalidSignUp, models.RoleUser)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: username, PasswordHash: hash, Role: role}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	logging.FromContextOr(ctx, s.log).Info("user_signed_up",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return &Session{Token: token, User: user}, nil
}

// Login checks the credentials. An unknown user and a wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}
