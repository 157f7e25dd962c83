// Package user holds the minimal account directory the authentication
// subsystem needs: address lookup for change notices and last-login
// bookkeeping.
package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a user does not exist
var ErrNotFound = errors.New("user not found")

// User is one account as this subsystem sees it
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// Repository stores users
type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (User, error)
	Upsert(ctx context.Context, user User) error
	SetLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// InMemRepository implements Repository with a mutex-guarded map
type InMemRepository struct {
	mutex sync.RWMutex
	users map[uuid.UUID]User
}

// NewInMemRepository creates a new in-memory user repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		users: make(map[uuid.UUID]User),
	}
}

func (r *InMemRepository) Get(ctx context.Context, userID uuid.UUID) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, exists := r.users[userID]
	if !exists {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *InMemRepository) Upsert(ctx context.Context, user User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.users[user.ID] = user
	return nil
}

func (r *InMemRepository) SetLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, exists := r.users[userID]
	if !exists {
		return ErrNotFound
	}
	u.LastLoginAt = at
	r.users[userID] = u
	return nil
}

// Service exposes the directory operations other packages consume
type Service struct {
	repo Repository
}

// NewService creates a user service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetEmail resolves a user's address; empty when the user has none
func (s *Service) GetEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	return u.Email, nil
}

// RecordLogin updates last-login bookkeeping after a successful attempt
func (s *Service) RecordLogin(ctx context.Context, userID uuid.UUID) error {
	err := s.repo.SetLastLogin(ctx, userID, time.Now().UTC())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}
