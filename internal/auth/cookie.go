package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signSessionToken(secret []byte, sess Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   sess.SteamID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// parseSessionToken checks the signature and, unless allowExpired is set,
// the expiry.
func parseSessionToken(secret []byte, token string, now time.Time, allowExpired bool) (jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		opts...,
	)
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	if claims.ID == "" || claims.Subject == "" {
		return jwt.RegisteredClaims{}, fmt.Errorf("session token is missing claims")
	}
	return claims, nil
}
