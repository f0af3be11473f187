package auth

import "time"

// User is a row of the user directory.
type User struct {
	SteamID    string `json:"steamId"`
	Username   string `json:"username"`
	ProfileURL string `json:"profileUrl,omitempty"`
}

// Session is the server-side record behind a session cookie. Token is the
// signed cookie value and is never persisted.
type Session struct {
	ID         string
	Token      string
	SteamID    string
	Username   string
	ProfileURL string
	AvatarURL  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

func (s Session) User() User {
	return User{SteamID: s.SteamID, Username: s.Username, ProfileURL: s.ProfileURL}
}

func (s Session) expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
