package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionStore interface {
	Put(ctx context.Context, sess Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session)}
}

func (s *InMemorySessionStore) Put(_ context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	sess.Token = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type sessionQueries struct {
	put           string
	get           string
	delete        string
	deleteExpired string
}

// sqlSessionStore keeps sessions in auth_sessions. Times are stored in UTC.
type sqlSessionStore struct {
	db *sql.DB
	q  sessionQueries
}

func (s *sqlSessionStore) Put(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if _, err := s.db.ExecContext(ctx, s.q.put,
		sess.ID, sess.SteamID, sess.Username, sess.ProfileURL, sess.AvatarURL,
		sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *sqlSessionStore) Get(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, s.q.get, id).Scan(
		&sess.ID, &sess.SteamID, &sess.Username, &sess.ProfileURL, &sess.AvatarURL,
		&sess.CreatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

func (s *sqlSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.q.delete, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *sqlSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q.deleteExpired, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count expired sessions: %w", err)
	}
	return n, nil
}

type PostgresSessionStore struct {
	sqlSessionStore
}

func NewPostgresSessionStore(db *sql.DB) (*PostgresSessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresSessionStore{sqlSessionStore{db: db, q: sessionQueries{
		put: `
INSERT INTO auth_sessions (session_id, steam_id, username, profile_url, avatar_url, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		get: `
SELECT session_id, steam_id, username, profile_url, avatar_url, created_at, expires_at
FROM auth_sessions WHERE session_id = $1`,
		delete:        `DELETE FROM auth_sessions WHERE session_id = $1`,
		deleteExpired: `DELETE FROM auth_sessions WHERE expires_at <= $1`,
	}}}, nil
}

type SQLiteSessionStore struct {
	sqlSessionStore
}

func NewSQLiteSessionStore(db *sql.DB) (*SQLiteSessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &SQLiteSessionStore{sqlSessionStore{db: db, q: sessionQueries{
		put: `
INSERT INTO auth_sessions (session_id, steam_id, username, profile_url, avatar_url, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		get: `
SELECT session_id, steam_id, username, profile_url, avatar_url, created_at, expires_at
FROM auth_sessions WHERE session_id = ?`,
		delete:        `DELETE FROM auth_sessions WHERE session_id = ?`,
		deleteExpired: `DELETE FROM auth_sessions WHERE expires_at <= ?`,
	}}}, nil
}
