package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRedirectURI is returned when no redirect URI is configured.
	ErrMissingRedirectURI = errors.New("no redirect URI configured")

	// ErrNonLocalRedirect is returned when the redirect URI points anywhere
	// but localhost or 127.0.0.1. Automatic code capture is only defined for
	// local redirect targets.
	ErrNonLocalRedirect = errors.New("redirect host must be localhost or 127.0.0.1")

	// ErrCertificatesUnavailable is returned when the HTTPS callback listener
	// cannot read its certificate pair. No listener is started.
	ErrCertificatesUnavailable = errors.New("TLS certificates unavailable")

	// ErrStateMismatch is returned when the callback's state parameter does
	// not match the one issued at URL-build time.
	ErrStateMismatch = errors.New("state parameter mismatch")

	// ErrNoAuthorizationCode is returned when the callback carries neither an
	// error nor a code parameter.
	ErrNoAuthorizationCode = errors.New("callback carried no authorization code")
)

// ProviderError is the error the provider reported on the callback redirect,
// e.g. when the user denied access.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied by provider: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization denied by provider: %s", e.Code)
}

// TokenExchangeError is a non-success response from the token endpoint
// during code exchange. Body carries the provider's response text.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// TokenRefreshError wraps a failure of the refresh flow. Callers treat it as
// "refresh token invalid or expired" and fall back to full re-authorization.
type TokenRefreshError struct {
	Err error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *TokenRefreshError) Unwrap() error {
	return e.Err
}
