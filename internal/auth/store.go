package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrStoreFailure = errors.New("user directory unavailable")
)

// StoreError is a backend failure of a directory operation. It matches
// ErrStoreFailure under errors.Is.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("user directory %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

// UserStore records every Steam account that has logged in. Rows are only
// ever added.
type UserStore interface {
	Get(ctx context.Context, steamID string) (User, error)
	Add(ctx context.Context, user User) error
}

type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]User)}
}

func (s *InMemoryUserStore) Get(_ context.Context, steamID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.TrimSpace(steamID)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *InMemoryUserStore) Add(_ context.Context, user User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.SteamID]; !ok {
		s.users[user.SteamID] = user
	}
	return nil
}

func (s *InMemoryUserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func validateUser(user User) error {
	if strings.TrimSpace(user.SteamID) == "" {
		return fmt.Errorf("steam id is required")
	}
	if strings.TrimSpace(user.Username) == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}
