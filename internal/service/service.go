package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/memo-service/internal/models"
	"github.com/Dan9191/memo-service/internal/repository"
	"github.com/Dan9191/memo-service/internal/token"
)

// ErrAuthenticationFailed is returned for both unknown usernames and wrong
// passwords; callers must not be able to tell the two apart.
var ErrAuthenticationFailed = errors.New("authentication failed")

// dummyHash is a valid bcrypt digest compared against when the username is
// unknown, so both login failure paths cost a full bcrypt comparison.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Service handles business logic
type Service struct {
	repo   *repository.Repository
	tokens *token.Manager
	log    *logrus.Logger
}

// NewService initializes a new service
func NewService(repo *repository.Repository, tokens *token.Manager, log *logrus.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, log: log}
}

// Register creates a new user with hashed password
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Username)
	return user, nil
}

// Login authenticates a user and returns a signed token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return "", ErrAuthenticationFailed
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthenticationFailed
	}

	tokenString, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", err
	}

	s.log.Infof("User logged in: %s", user.Username)
	return tokenString, nil
}

// CreateMemo creates a new memo for the authenticated user
func (s *Service) CreateMemo(ctx context.Context, ownerID int64, title, content string) (*models.Memo, error) {
	memo := &models.Memo{
		Title:   title,
		Content: content,
		OwnerID: ownerID,
	}

	if err := s.repo.CreateMemo(ctx, memo); err != nil {
		return nil, err
	}

	s.log.Infof("Memo %d created for user %d", memo.ID, ownerID)
	return memo, nil
}

// GetMemo retrieves one of the user's memos
func (s *Service) GetMemo(ctx context.Context, ownerID, id int64) (*models.Memo, error) {
	return s.repo.FindMemoByID(ctx, ownerID, id)
}

// UpdateMemo replaces the title and content of one of the user's memos
func (s *Service) UpdateMemo(ctx context.Context, ownerID, id int64, title, content string) (*models.Memo, error) {
	memo, err := s.repo.UpdateMemo(ctx, ownerID, id, title, content)
	if err != nil {
		return nil, err
	}

	s.log.Infof("Memo %d updated for user %d", id, ownerID)
	return memo, nil
}

// DeleteMemo removes one of the user's memos
func (s *Service) DeleteMemo(ctx context.Context, ownerID, id int64) error {
	if err := s.repo.DeleteMemo(ctx, ownerID, id); err != nil {
		return err
	}

	s.log.Infof("Memo %d deleted for user %d", id, ownerID)
	return nil
}
