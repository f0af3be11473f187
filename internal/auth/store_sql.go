package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type userQueries struct {
	get string
	add string
}

// sqlUserStore backs the directory with the users(steam_id, steam_name)
// table. The schema is owned by the migrations package.
type sqlUserStore struct {
	db *sql.DB
	q  userQueries
}

func (s *sqlUserStore) Get(ctx context.Context, steamID string) (User, error) {
	steamID = strings.TrimSpace(steamID)
	if steamID == "" {
		return User{}, ErrUserNotFound
	}

	u := User{SteamID: steamID}
	if err := s.db.QueryRowContext(ctx, s.q.get, steamID).Scan(&u.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, &StoreError{Op: "get", Err: err}
	}
	return u, nil
}

func (s *sqlUserStore) Add(ctx context.Context, user User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.add, user.SteamID, user.Username); err != nil {
		return &StoreError{Op: "add", Err: err}
	}
	return nil
}

type PostgresUserStore struct {
	sqlUserStore
}

func NewPostgresUserStore(db *sql.DB) (*PostgresUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresUserStore{sqlUserStore{db: db, q: userQueries{
		get: `SELECT steam_name FROM users WHERE steam_id = $1`,
		add: `INSERT INTO users (steam_id, steam_name) VALUES ($1, $2) ON CONFLICT (steam_id) DO NOTHING`,
	}}}, nil
}

type SQLiteUserStore struct {
	sqlUserStore
}

func NewSQLiteUserStore(db *sql.DB) (*SQLiteUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &SQLiteUserStore{sqlUserStore{db: db, q: userQueries{
		get: `SELECT steam_name FROM users WHERE steam_id = ?`,
		add: `INSERT INTO users (steam_id, steam_name) VALUES (?, ?) ON CONFLICT (steam_id) DO NOTHING`,
	}}}, nil
}
