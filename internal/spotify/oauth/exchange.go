package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds every token endpoint call.
const DefaultHTTPTimeout = 30 * time.Second

// DefaultTokenLifetime is assumed when the provider omits expires_in.
// Spotify access tokens live one hour.
const DefaultTokenLifetime = 3600 * time.Second

// TokenPair is the result of a code exchange or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string

	// ExpiresAt is epoch milliseconds.
	ExpiresAt int64
}

// Exchanger talks to the provider's token endpoint.
type Exchanger struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

// NewExchanger creates an exchanger with a default HTTP client.
func NewExchanger(cfg Config) *Exchanger {
	return NewExchangerWithClient(cfg, &http.Client{Timeout: DefaultHTTPTimeout})
}

// NewExchangerWithClient creates an exchanger reusing the given HTTP client.
func NewExchangerWithClient(cfg Config, httpClient *http.Client) *Exchanger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Exchanger{cfg: cfg, httpClient: httpClient, now: time.Now}
}

// ExchangeCode swaps an authorization code for a token pair. The call is a
// form-encoded POST authenticated with Basic auth over the client id and
// secret, as the provider documents for confidential clients. Any
// non-success status yields a TokenExchangeError carrying the response body.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {e.cfg.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.endpoint().TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(e.cfg.ClientID, e.cfg.ClientSecret)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int(DefaultTokenLifetime / time.Second)
	}

	return &TokenPair{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    e.now().Add(time.Duration(expiresIn) * time.Second).UnixMilli(),
	}, nil
}

// Refresh mints a new access token from a refresh token using the oauth2
// library's refresh flow. The provider does not always rotate the refresh
// token; the previous one is kept when the response omits it. Any failure is
// wrapped in a TokenRefreshError, which callers treat as "refresh token
// invalid" and answer with full re-authorization.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, &TokenRefreshError{Err: errors.New("no refresh token available")}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	source := e.cfg.oauth2Config().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return nil, &TokenRefreshError{Err: err}
	}

	pair := &TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.UnixMilli(),
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	if token.Expiry.IsZero() {
		pair.ExpiresAt = e.now().Add(DefaultTokenLifetime).UnixMilli()
	}
	return pair, nil
}
