package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTokenEndpoint is a scriptable stand-in for the provider's token
// endpoint. The refresh flow probes client authentication styles, so the
// handler accepts credentials in either the header or the form.
type fakeTokenEndpoint struct {
	mu            sync.Mutex
	exchangeCalls int
	refreshCalls  int
	lastForm      url.Values
	lastUser      string
	lastPass      string

	status       int    // non-zero forces an error response
	rawBody      string // non-empty overrides the JSON payload
	accessToken  string
	refreshToken string // empty omits the field
	expiresIn    int    // <= 0 omits the field
}

func newFakeTokenEndpoint(t *testing.T) (*fakeTokenEndpoint, *httptest.Server) {
	t.Helper()
	f := &fakeTokenEndpoint{
		accessToken:  "access-1",
		refreshToken: "refresh-1",
		expiresIn:    3600,
	}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeTokenEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	f.lastForm = r.PostForm
	f.lastUser, f.lastPass, _ = r.BasicAuth()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		f.exchangeCalls++
	case "refresh_token":
		f.refreshCalls++
	}

	w.Header().Set("Content-Type", "application/json")

	if f.status != 0 {
		w.WriteHeader(f.status)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
		return
	}
	if f.rawBody != "" {
		fmt.Fprint(w, f.rawBody)
		return
	}

	payload := map[string]any{
		"access_token": f.accessToken,
		"token_type":   "Bearer",
	}
	if f.refreshToken != "" {
		payload["refresh_token"] = f.refreshToken
	}
	if f.expiresIn > 0 {
		payload["expires_in"] = f.expiresIn
	}
	json.NewEncoder(w).Encode(payload)
}

func (f *fakeTokenEndpoint) counts() (exchanges, refreshes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls, f.refreshCalls
}

func (f *fakeTokenEndpoint) form() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm
}

func (f *fakeTokenEndpoint) basicAuth() (user, pass string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUser, f.lastPass
}

func (f *fakeTokenEndpoint) set(mutate func(*fakeTokenEndpoint)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f)
}

func newTestExchanger(t *testing.T, tokenURL string) (*Exchanger, time.Time) {
	t.Helper()
	cfg := testConfig()
	cfg.TokenURL = tokenURL

	e := NewExchanger(cfg)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	return e, fixed
}

func TestExchangeCode_Success(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	e, fixed := newTestExchanger(t, srv.URL)

	pair, err := e.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode failed: %v", err)
	}

	if pair.AccessToken != "access-1" {
		t.Errorf("AccessToken = %q", pair.AccessToken)
	}
	if pair.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q", pair.RefreshToken)
	}
	if want := fixed.Add(3600 * time.Second).UnixMilli(); pair.ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want %d", pair.ExpiresAt, want)
	}

	form := f.form()
	if form.Get("grant_type") != "authorization_code" {
		t.Errorf("grant_type = %q", form.Get("grant_type"))
	}
	if form.Get("code") != "auth-code" {
		t.Errorf("code = %q", form.Get("code"))
	}
	if form.Get("redirect_uri") != "https://localhost:8888/callback" {
		t.Errorf("redirect_uri = %q", form.Get("redirect_uri"))
	}

	user, pass := f.basicAuth()
	if user != "client-id" || pass != "client-secret" {
		t.Errorf("Basic auth = %q/%q", user, pass)
	}
}

func TestExchangeCode_DefaultLifetimeWhenOmitted(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	f.set(func(f *fakeTokenEndpoint) { f.expiresIn = 0 })
	e, fixed := newTestExchanger(t, srv.URL)

	pair, err := e.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode failed: %v", err)
	}
	if want := fixed.Add(DefaultTokenLifetime).UnixMilli(); pair.ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want default lifetime %d", pair.ExpiresAt, want)
	}
}

func TestExchangeCode_NonSuccessStatus(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	f.set(func(f *fakeTokenEndpoint) { f.status = http.StatusBadRequest })
	e, _ := newTestExchanger(t, srv.URL)

	_, err := e.ExchangeCode(context.Background(), "bad-code")

	var exchangeErr *TokenExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("err = %v, want *TokenExchangeError", err)
	}
	if exchangeErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", exchangeErr.StatusCode)
	}
	if !strings.Contains(exchangeErr.Body, "invalid_grant") {
		t.Errorf("Body = %q, want the provider's response text", exchangeErr.Body)
	}
}

func TestExchangeCode_MalformedResponse(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	f.set(func(f *fakeTokenEndpoint) { f.rawBody = "not json" })
	e, _ := newTestExchanger(t, srv.URL)

	if _, err := e.ExchangeCode(context.Background(), "auth-code"); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestExchangeCode_EmptyAccessToken(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	f.set(func(f *fakeTokenEndpoint) { f.accessToken = "" })
	e, _ := newTestExchanger(t, srv.URL)

	_, err := e.ExchangeCode(context.Background(), "auth-code")

	var exchangeErr *TokenExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("err = %v, want *TokenExchangeError", err)
	}
}

func TestRefresh_Success(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	f.set(func(f *fakeTokenEndpoint) {
		f.accessToken = "access-2"
		f.refreshToken = "refresh-2"
	})
	e, _ := newTestExchanger(t, srv.URL)

	before := time.Now()
	pair, err := e.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if pair.AccessToken != "access-2" {
		t.Errorf("AccessToken = %q", pair.AccessToken)
	}
	if pair.RefreshToken != "refresh-2" {
		t.Errorf("RefreshToken = %q, want the rotated token", pair.RefreshToken)
	}

	// Expiry comes from the library's own clock, so assert a window.
	low := before.Add(50 * time.Minute).UnixMilli()
	high := time.Now().Add(70 * time.Minute).UnixMilli()
	if pair.ExpiresAt < low || pair.ExpiresAt > high {
		t.Errorf("ExpiresAt = %d, want roughly an hour out", pair.ExpiresAt)
	}

	if form := f.form(); form.Get("grant_type") != "refresh_token" {
		t.Errorf("grant_type = %q", form.Get("grant_type"))
	}
}

func TestRefresh_KeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	f.set(func(f *fakeTokenEndpoint) {
		f.accessToken = "access-2"
		f.refreshToken = ""
	})
	e, _ := newTestExchanger(t, srv.URL)

	pair, err := e.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want the original kept", pair.RefreshToken)
	}
}

func TestRefresh_ProviderRejection(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	f.set(func(f *fakeTokenEndpoint) { f.status = http.StatusBadRequest })
	e, _ := newTestExchanger(t, srv.URL)

	_, err := e.Refresh(context.Background(), "revoked-refresh")

	var refreshErr *TokenRefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("err = %v, want *TokenRefreshError", err)
	}
}

func TestRefresh_EmptyTokenSkipsNetwork(t *testing.T) {
	f, srv := newFakeTokenEndpoint(t)
	e, _ := newTestExchanger(t, srv.URL)

	_, err := e.Refresh(context.Background(), "")

	var refreshErr *TokenRefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("err = %v, want *TokenRefreshError", err)
	}
	if _, refreshes := f.counts(); refreshes != 0 {
		t.Errorf("refresh calls = %d, want 0", refreshes)
	}
}
