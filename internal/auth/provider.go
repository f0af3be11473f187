package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/yohcop/openid-go"
)

// IdentityProvider runs the OpenID 2.0 exchange with Steam.
type IdentityProvider interface {
	// AuthURL is where the browser is sent to sign in.
	AuthURL(ctx context.Context) (string, error)
	// Verify checks the assertion carried by the callback URL and returns
	// the claimed identifier.
	Verify(ctx context.Context, callbackURL string) (string, error)
}

type SteamOpenID struct {
	endpoint  string
	returnURL string
	realm     string
	discovery openid.DiscoveryCache
	nonces    openid.NonceStore
}

func NewSteamOpenID(endpoint, returnURL, realm string) *SteamOpenID {
	return &SteamOpenID{
		endpoint:  strings.TrimRight(endpoint, "/"),
		returnURL: returnURL,
		realm:     realm,
		discovery: openid.NewSimpleDiscoveryCache(),
		nonces:    openid.NewSimpleNonceStore(),
	}
}

func (p *SteamOpenID) AuthURL(_ context.Context) (string, error) {
	u, err := openid.RedirectURL(p.endpoint, p.returnURL, p.realm)
	if err != nil {
		return "", fmt.Errorf("build openid redirect: %w", err)
	}
	return u, nil
}

func (p *SteamOpenID) Verify(_ context.Context, callbackURL string) (string, error) {
	id, err := openid.Verify(callbackURL, p.discovery, p.nonces)
	if err != nil {
		return "", fmt.Errorf("verify openid assertion: %w", err)
	}
	return id, nil
}

// ClaimedIDPrefix is the form Steam gives every claimed identifier.
func (p *SteamOpenID) ClaimedIDPrefix() string {
	return p.endpoint + "/id/"
}

// SteamIDFromClaimedID returns the last path segment of a claimed id issued
// under prefix. Identifiers from any other provider are rejected.
func SteamIDFromClaimedID(claimedID, prefix string) (string, error) {
	if prefix != "" && !strings.HasPrefix(claimedID, prefix) {
		return "", fmt.Errorf("claimed id %q is not a steam identity", claimedID)
	}
	id := claimedID[strings.LastIndex(claimedID, "/")+1:]
	if id == "" {
		return "", fmt.Errorf("claimed id %q has no steam id", claimedID)
	}
	return id, nil
}
