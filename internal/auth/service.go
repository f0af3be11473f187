package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"steamtracker/steam-api/internal/steam"
)

var (
	ErrVerificationFailed = errors.New("steam login verification failed")
	ErrInvalidSession     = errors.New("invalid session")
)

// ProfileFetcher loads the display fields shown for a freshly logged in user.
type ProfileFetcher interface {
	PlayerProfile(ctx context.Context, steamID string) (steam.PlayerProfile, error)
}

type ServiceConfig struct {
	SessionSecret   string
	SessionTTL      time.Duration
	ClaimedIDPrefix string
}

// Service is the identity gate: it runs the Steam login round trip, records
// users, and issues and checks session cookies.
type Service struct {
	users     UserStore
	sessions  SessionStore
	provider  IdentityProvider
	profiles  ProfileFetcher
	secret    []byte
	ttl       time.Duration
	idPrefix  string
	log       *slog.Logger
	nowFunc   func() time.Time
	newIDFunc func() string
}

func NewService(users UserStore, sessions SessionStore, provider IdentityProvider, profiles ProfileFetcher, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile fetcher is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Service{
		users:     users,
		sessions:  sessions,
		provider:  provider,
		profiles:  profiles,
		secret:    []byte(cfg.SessionSecret),
		ttl:       cfg.SessionTTL,
		idPrefix:  cfg.ClaimedIDPrefix,
		log:       logger.With("component", "auth"),
		nowFunc:   time.Now,
		newIDFunc: uuid.NewString,
	}, nil
}

func (s *Service) SessionTTL() time.Duration { return s.ttl }

// Begin returns the Steam sign-in URL.
func (s *Service) Begin(ctx context.Context) (string, error) {
	return s.provider.AuthURL(ctx)
}

// Complete verifies the callback, records the user on first login and opens
// a session.
func (s *Service) Complete(ctx context.Context, callbackURL string) (Session, error) {
	claimedID, err := s.provider.Verify(ctx, callbackURL)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	steamID, err := SteamIDFromClaimedID(claimedID, s.idPrefix)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	sess := Session{ID: s.newIDFunc(), SteamID: steamID, Username: steamID}
	profile, err := s.profiles.PlayerProfile(ctx, steamID)
	if err != nil {
		s.log.WarnContext(ctx, "profile lookup failed, using steam id as name", "steam_id", steamID, "err", err)
	} else {
		if profile.Name != "" {
			sess.Username = profile.Name
		}
		sess.ProfileURL = profile.ProfileURL
		sess.AvatarURL = profile.Avatar
	}

	s.recordUser(ctx, sess.User())

	now := s.nowFunc().UTC()
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	if err := s.sessions.Put(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}

	token, err := signSessionToken(s.secret, sess)
	if err != nil {
		_ = s.sessions.Delete(ctx, sess.ID)
		return Session{}, err
	}
	sess.Token = token
	return sess, nil
}

// recordUser adds the user on first login. Directory failures do not block
// the login.
func (s *Service) recordUser(ctx context.Context, user User) {
	_, err := s.users.Get(ctx, user.SteamID)
	switch {
	case err == nil:
		return
	case errors.Is(err, ErrUserNotFound):
		if err := s.users.Add(ctx, user); err != nil {
			s.log.ErrorContext(ctx, "add user failed", "steam_id", user.SteamID, "err", err)
			return
		}
		s.log.InfoContext(ctx, "new user recorded", "steam_id", user.SteamID)
	default:
		s.log.ErrorContext(ctx, "user lookup failed", "steam_id", user.SteamID, "err", err)
	}
}

// Check resolves a cookie value to a live session.
func (s *Service) Check(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidSession
	}
	now := s.nowFunc()
	claims, err := parseSessionToken(s.secret, token, now, false)
	if err != nil {
		return Session{}, ErrInvalidSession
	}

	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{}, ErrInvalidSession
		}
		return Session{}, err
	}
	if sess.SteamID != claims.Subject || sess.expired(now) {
		return Session{}, ErrInvalidSession
	}
	sess.Token = token
	return sess, nil
}

// Logout removes the session named by the cookie. Expired cookies are still
// honoured so their record goes away.
func (s *Service) Logout(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidSession
	}
	claims, err := parseSessionToken(s.secret, token, s.nowFunc(), true)
	if err != nil {
		return Session{}, ErrInvalidSession
	}

	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{}, ErrInvalidSession
		}
		return Session{}, err
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// CleanupExpired drops every session whose expiry has passed.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.nowFunc())
}

// RunCleanup calls CleanupExpired every interval until ctx is done.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CleanupExpired(ctx)
			if err != nil {
				s.log.ErrorContext(ctx, "session cleanup failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.InfoContext(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}
