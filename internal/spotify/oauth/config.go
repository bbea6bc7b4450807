package oauth

import (
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"
)

// Config carries everything one authorization attempt needs. AuthURL and
// TokenURL override the Spotify account endpoints; tests point them at local
// fakes.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// CertDir holds cert.pem and key.pem for the HTTPS callback listener.
	CertDir string

	AuthURL  string
	TokenURL string
}

func (c Config) endpoint() oauth2.Endpoint {
	ep := spotifyauth.Endpoint
	if c.AuthURL != "" {
		ep.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		ep.TokenURL = c.TokenURL
	}
	return ep
}

func (c Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Endpoint:     c.endpoint(),
		Scopes:       Scopes,
	}
}

// RedirectTarget is the local listen target derived from a redirect URI.
type RedirectTarget struct {
	// Secure is true when the redirect scheme is https and the listener must
	// present a TLS certificate.
	Secure bool
	Host   string
	Port   int
	Path   string
}

// ParseRedirectURI derives the callback listen target from the configured
// redirect URI. It fails before any listener is bound when the host is not
// local. The port defaults to 443 for https and 80 for http.
func ParseRedirectURI(raw string) (*RedirectTarget, error) {
	if raw == "" {
		return nil, ErrMissingRedirectURI
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI %q: %w", raw, err)
	}

	var secure bool
	switch u.Scheme {
	case "https":
		secure = true
	case "http":
		secure = false
	default:
		return nil, fmt.Errorf("redirect URI scheme %q not supported", u.Scheme)
	}

	host := u.Hostname()
	if !isLocalHost(host) {
		return nil, fmt.Errorf("%w, got %q", ErrNonLocalRedirect, host)
	}

	port := 80
	if secure {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("redirect URI port %q: %w", p, err)
		}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return &RedirectTarget{Secure: secure, Host: host, Port: port, Path: path}, nil
}

// IsLocalRedirect reports whether the redirect URI targets localhost or
// 127.0.0.1, i.e. whether the local listener can capture the code
// automatically.
func IsLocalRedirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return isLocalHost(u.Hostname())
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}
