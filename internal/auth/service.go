package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
	"github.com/grantdesk/backend/pkg/logger"
)

type Service struct {
	store      *sqlite.Client
	sessionTTL time.Duration
}

func NewService(store *sqlite.Client, sessionTTL time.Duration) *Service {
	return &Service{
		store:      store,
		sessionTTL: sessionTTL,
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Login verifies credentials and issues a session. Credentials are checked
// against the stored bcrypt hash, never by direct string comparison.
func (s *Service) Login(email, password string) (*models.User, *models.Session, error) {
	if email == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrUnauthenticated
	}

	token, err := generateToken()
	if err != nil {
		return nil, nil, err
	}
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Info("User logged in", zap.String("user_id", user.ID))

	return user, session, nil
}

func (s *Service) Logout(token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(token)
}

// Resolve validates a session token and returns the owning user.
func (s *Service) Resolve(token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.store.GetSession(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		s.store.DeleteSession(token)
		return nil, ErrUnauthenticated
	}

	user, err := s.store.GetUser(session.UserID)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	return user, nil
}

// UpdateSettings changes the user's own name and/or password.
func (s *Service) UpdateSettings(userID, name, password string) (*models.User, error) {
	if name == "" && password == "" {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	user, err := s.store.GetUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if name != "" {
		user.Name = name
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.store.UpdateUser(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// HashPassword is used by administrative seeding.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
