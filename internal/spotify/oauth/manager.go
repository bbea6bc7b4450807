package oauth

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"workbeat/internal/cache"
	"workbeat/internal/config"
)

// RenewalThreshold is how long before real expiry a token is proactively
// refreshed, so a caller is never handed a token that dies mid-request.
const RenewalThreshold = 5 * time.Minute

// Credentials is the client credential triple from the config document.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Status answers "can the provider be called right now".
type Status struct {
	Authorized bool

	// AuthURL is a fresh authorization URL, set when re-authorization is
	// needed and credentials allow building one.
	AuthURL string

	// ServerAuthAvailable reports whether the local listener can capture the
	// authorization code automatically, i.e. the redirect host is local.
	ServerAuthAvailable bool

	Message string
}

// tokenState is the in-memory mirror of the persisted token triple.
type tokenState struct {
	accessToken  string
	refreshToken string
	expiresAt    int64
}

// ManagerOptions tune a Manager beyond what the config document carries.
type ManagerOptions struct {
	// CertDir holds the certificate pair for the HTTPS callback listener.
	CertDir string

	// AuthURL and TokenURL override the provider endpoints, for tests.
	AuthURL  string
	TokenURL string

	// HTTPClient overrides the token endpoint client.
	HTTPClient *http.Client
}

// Manager is the authorization status resolver. It arbitrates between the
// persisted document, the in-memory token state and the cache fallback, and
// it drives the full first-time authorization flow.
type Manager struct {
	store *config.Store
	cache *cache.Cache
	opts  ManagerOptions

	httpClient *http.Client

	mu    sync.RWMutex
	creds Credentials
	state tokenState

	now func() time.Time
}

// NewManager creates a Manager over the given store and cache.
func NewManager(store *config.Store, c *cache.Cache, opts ManagerOptions) *Manager {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Manager{
		store:      store,
		cache:      c,
		opts:       opts,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// CheckAuthStatus decides whether the caller is authorized, silently
// refreshes a near-expiry token, or reports that the full flow must be
// restarted. It is safe to call before every provider operation and it never
// returns an error; every failure becomes Authorized:false with a fresh
// authorization URL when one can be built.
func (m *Manager) CheckAuthStatus(ctx context.Context) Status {
	doc, err := m.store.Load()
	if err != nil {
		slog.Debug("Config document unreadable, using fallback state", "error", err.Error())
		return m.fallbackStatus(ctx)
	}

	creds := Credentials{
		ClientID:     doc.ClientID(),
		ClientSecret: doc.ClientSecret(),
		RedirectURI:  doc.RedirectURI(),
	}
	m.adoptCredentials(creds)

	expiresAt, _ := doc.ExpiresAt()
	persisted := tokenState{
		accessToken:  doc.AccessToken(),
		refreshToken: doc.RefreshToken(),
		expiresAt:    expiresAt,
	}
	if persisted.accessToken == "" && persisted.refreshToken == "" {
		return m.reauthStatus(creds, "Spotify authorization required")
	}

	// The persisted document is the source of truth when readable.
	m.adoptTokens(persisted)

	if persisted.accessToken != "" && !m.nearExpiry(persisted.expiresAt) {
		return Status{Authorized: true, Message: "Spotify authorized"}
	}
	return m.refreshAndReport(ctx, creds, persisted.refreshToken)
}

// fallbackStatus is the resolver's last tier: the document is unreadable, so
// only in-memory state and the cache remain.
func (m *Manager) fallbackStatus(ctx context.Context) Status {
	m.mu.RLock()
	creds := m.creds
	memory := m.state
	m.mu.RUnlock()

	if creds == (Credentials{}) {
		return Status{
			Authorized: false,
			Message:    "Spotify is not configured: add clientId, clientSecret and redirectUri to the config document",
		}
	}

	refreshToken := memory.refreshToken
	if refreshToken == "" {
		refreshToken, _ = m.cache.GetString(cache.KeyRefreshToken)
	}
	if refreshToken == "" {
		return m.reauthStatus(creds, "Spotify authorization required")
	}

	expiresAt := memory.expiresAt
	if expiresAt == 0 {
		expiresAt, _ = m.cache.GetInt64(cache.KeyExpiresAt)
	}
	if m.nearExpiry(expiresAt) {
		return m.refreshAndReport(ctx, creds, refreshToken)
	}
	return Status{Authorized: true, Message: "Spotify authorized (cached state)"}
}

// StartAuthorization begins the full first-time flow: build the
// authorization URL, bind the one-shot callback listener with an
// exchange-and-persist completion, and return the URL plus a wait function
// that blocks until the single terminal resolution. There is no built-in
// timeout on the user's browser step; callers bound the wait through ctx.
func (m *Manager) StartAuthorization(ctx context.Context) (string, func(context.Context) error, error) {
	doc, err := m.store.Load()
	if err != nil {
		return "", nil, err
	}
	creds := Credentials{
		ClientID:     doc.ClientID(),
		ClientSecret: doc.ClientSecret(),
		RedirectURI:  doc.RedirectURI(),
	}
	m.adoptCredentials(creds)

	cfg := m.configFor(creds)
	authURL, state, err := BuildAuthURL(cfg)
	if err != nil {
		return "", nil, err
	}

	server := NewCallbackServer(cfg, state, func(ctx context.Context, code string) error {
		pair, err := m.exchangerFor(creds).ExchangeCode(ctx, code)
		if err != nil {
			return err
		}
		m.persistTokens(pair)
		return nil
	})
	if err := server.Start(ctx); err != nil {
		return "", nil, err
	}

	wait := func(ctx context.Context) error {
		defer server.Stop()
		return server.Wait(ctx)
	}
	return authURL, wait, nil
}

// AccessToken returns the current in-memory access token, or "" when the
// process is not authorized.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.accessToken
}

// ExpiresAt returns the in-memory expiry in epoch milliseconds, 0 when
// unknown.
func (m *Manager) ExpiresAt() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.expiresAt
}

// Credentials returns the last successfully loaded credential triple.
func (m *Manager) Credentials() Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}

func (m *Manager) nearExpiry(expiresAt int64) bool {
	return m.now().UnixMilli() > expiresAt-RenewalThreshold.Milliseconds()
}

// refreshAndReport attempts a silent refresh. Failure is not an error to the
// caller; it degrades to "re-authorization required" with a fresh URL.
func (m *Manager) refreshAndReport(ctx context.Context, creds Credentials, refreshToken string) Status {
	pair, err := m.exchangerFor(creds).Refresh(ctx, refreshToken)
	if err != nil {
		slog.Warn("Token refresh failed", "error", err.Error())
		return m.reauthStatus(creds, "Spotify token refresh failed; re-authorization required")
	}

	m.persistTokens(pair)
	slog.Info("Access token refreshed", "expires_at", pair.ExpiresAt)
	return Status{Authorized: true, Message: "Spotify authorized (token refreshed)"}
}

// reauthStatus reports "not authorized" with everything needed to restart
// the flow. The full flow must always be reachable.
func (m *Manager) reauthStatus(creds Credentials, message string) Status {
	authURL, _, err := BuildAuthURL(m.configFor(creds))
	if err != nil {
		return Status{
			Authorized: false,
			Message:    message + ", but no authorization URL can be built: " + err.Error(),
		}
	}
	return Status{
		Authorized:          false,
		AuthURL:             authURL,
		ServerAuthAvailable: IsLocalRedirect(creds.RedirectURI),
		Message:             message + ". Open the authorization URL to connect Spotify.",
	}
}

// persistTokens records a fresh token pair everywhere: config document
// first, then memory and cache. A document write failure degrades to
// cache-only persistence rather than failing the flow.
func (m *Manager) persistTokens(pair *TokenPair) {
	if err := m.store.SaveTokens(pair.AccessToken, pair.RefreshToken, pair.ExpiresAt); err != nil {
		slog.Warn("Token persistence failed, continuing with cache only", "error", err.Error())
	}

	state := tokenState{
		accessToken:  pair.AccessToken,
		refreshToken: pair.RefreshToken,
		expiresAt:    pair.ExpiresAt,
	}
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.mirrorToCache(state)
}

// adoptTokens takes persisted token state as the new truth when it differs
// from memory.
func (m *Manager) adoptTokens(persisted tokenState) {
	m.mu.Lock()
	changed := m.state != persisted
	if changed {
		m.state = persisted
	}
	m.mu.Unlock()

	if changed {
		m.mirrorToCache(persisted)
		slog.Debug("Adopted persisted tokens",
			"has_refresh_token", persisted.refreshToken != "",
			"expires_at", persisted.expiresAt,
		)
	}
}

// adoptCredentials remembers the last good credential triple so the resolver
// can still build authorization URLs after the document becomes unreadable.
func (m *Manager) adoptCredentials(creds Credentials) {
	if creds == (Credentials{}) {
		return
	}
	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()
}

func (m *Manager) mirrorToCache(state tokenState) {
	if state.refreshToken != "" {
		m.cache.Set(cache.KeyRefreshToken, state.refreshToken, cache.RefreshTokenTTL)
	}
	if state.expiresAt > 0 {
		remaining := time.Duration(state.expiresAt-m.now().UnixMilli()) * time.Millisecond
		m.cache.Set(cache.KeyExpiresAt, state.expiresAt, remaining)
	}
}

func (m *Manager) configFor(creds Credentials) Config {
	return Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURI:  creds.RedirectURI,
		CertDir:      m.opts.CertDir,
		AuthURL:      m.opts.AuthURL,
		TokenURL:     m.opts.TokenURL,
	}
}

func (m *Manager) exchangerFor(creds Credentials) *Exchanger {
	e := NewExchangerWithClient(m.configFor(creds), m.httpClient)
	e.now = m.now
	return e
}
