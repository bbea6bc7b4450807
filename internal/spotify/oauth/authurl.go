package oauth

import (
	"math/rand/v2"
)

// Scopes is the fixed scope set sent with every authorization request.
// Playback control, playlist management and profile/top-items reads cover all
// tools this server exposes.
var Scopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"streaming",
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
	"user-read-private",
	"user-top-read",
}

const (
	stateLength   = 16
	stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// BuildAuthURL builds the provider's authorization URL and the state token to
// verify on the callback. It fails when no redirect URI is configured.
func BuildAuthURL(cfg Config) (authURL, state string, err error) {
	if cfg.RedirectURI == "" {
		return "", "", ErrMissingRedirectURI
	}

	state = generateState()
	return cfg.oauth2Config().AuthCodeURL(state), state, nil
}

// generateState returns a random alphanumeric state token. It is a replay
// check for a single local authorization session, not a security-grade
// secret, so a non-cryptographic source is sufficient.
func generateState() string {
	b := make([]byte, stateLength)
	for i := range b {
		b[i] = stateAlphabet[rand.IntN(len(stateAlphabet))]
	}
	return string(b)
}
