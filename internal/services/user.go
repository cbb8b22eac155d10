package services

import (
	"context"
	"strings"
	"time"

	"github.com/electvote/electvote/internal/auth"
	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/timewindow"
)

// UserServiceRepository defines the repository methods needed by UserService
type UserServiceRepository interface {
	repository.UserRepository
	repository.NotificationRepository
}

// TokenIssuer signs bearer tokens for authenticated users
type TokenIssuer interface {
	Issue(userID int64, role models.Role) (string, time.Time, error)
}

// UserService handles accounts, credentials and in-app notifications
type UserService struct {
	log    logger.Logger
	repo   UserServiceRepository
	clock  clock.Clock
	tokens TokenIssuer
}

// NewUserService creates a new UserService
func NewUserService(log logger.Logger, repo UserServiceRepository, clk clock.Clock, tokens TokenIssuer) *UserService {
	return &UserService{log: log, repo: repo, clock: clk, tokens: tokens}
}

// SignupInput holds the fields of a new voter account
type SignupInput struct {
	Name     string
	Username string
	Password string
	Email    string
	IDNumber string
}

// LoginResult is returned by a successful Authenticate
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Signup creates a voter account. Username and email are compared lower-cased.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	idNumber := strings.TrimSpace(in.IDNumber)
	if name == "" || username == "" || in.Password == "" || idNumber == "" {
		return nil, errors.Validation("all fields except email are required")
	}
	return s.create(ctx, name, username, email, idNumber, in.Password, models.RoleVoter)
}

// Authenticate checks credentials and issues a bearer token
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err == repository.ErrNotFound {
		return nil, errors.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		s.log.Info("Failed login", "username", u.Username)
		return nil, errors.Unauthorized("invalid credentials")
	}

	token, expires, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, errors.Internal(err)
	}
	s.log.Debug("User logged in", "user_id", u.ID, "role", u.Role)
	return &LoginResult{Token: token, ExpiresAt: timewindow.FormatInstant(expires), User: u}, nil
}

// EnsureAdmin creates the admin account if the username is free. It reports
// whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return false, errors.Validation("admin username and password are required")
	}

	_, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if err != repository.ErrNotFound {
		return false, errors.Internal(err)
	}

	_, err = s.create(ctx, "Administrator", username, "", "", password, models.RoleAdmin)
	if errors.KindOf(err) == errors.ErrConflict {
		// created concurrently
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.Info("Admin account created", "username", username)
	return true, nil
}

// GetUser returns a user by id
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, storeError(err, "user", id)
	}
	return u, nil
}

// ListNotifications returns the user's notifications, newest first
func (s *UserService) ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	notifications, err := s.repo.ListNotifications(ctx, userID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return notifications, nil
}

// MarkNotificationRead flags one of the user's notifications as read
func (s *UserService) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	if err := s.repo.MarkNotificationRead(ctx, userID, id); err != nil {
		return storeError(err, "notification", id)
	}
	return nil
}

func (s *UserService) create(ctx context.Context, name, username, email, idNumber, password string, role models.Role) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, errors.Internal(err)
	}

	u := &models.User{
		Name:         name,
		Username:     username,
		Email:        email,
		IDNumber:     idNumber,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    timewindow.FormatInstant(s.clock.Now()),
	}
	id, err := s.repo.CreateUser(ctx, u)
	if err == repository.ErrDuplicate {
		return nil, errors.Conflict("username or email already registered")
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	u.ID = id
	return u, nil
}
