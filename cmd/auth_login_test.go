package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuthLoginCmdProperties(t *testing.T) {
	t.Run("login command Use field", func(t *testing.T) {
		if authLoginCmd.Use != "login" {
			t.Errorf("expected Use 'login', got %q", authLoginCmd.Use)
		}
	})

	t.Run("login command has short description", func(t *testing.T) {
		if authLoginCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
	})

	t.Run("login command has RunE", func(t *testing.T) {
		if authLoginCmd.RunE == nil {
			t.Error("expected RunE to be set")
		}
	})

	t.Run("login command has timeout flag", func(t *testing.T) {
		if authLoginCmd.Flags().Lookup("timeout") == nil {
			t.Error("expected --timeout flag to be registered")
		}
	})
}

// withLoginConfig points the CLI at a fresh config document and restores the
// shared flag state afterwards.
func withLoginConfig(t *testing.T, doc map[string]any) {
	t.Helper()

	originalPath := rootConfigPath
	originalTimeout := loginTimeout
	originalNoBrowser := loginNoBrowser
	t.Cleanup(func() {
		rootConfigPath = originalPath
		loginTimeout = originalTimeout
		loginNoBrowser = originalNoBrowser
	})

	rootConfigPath = filepath.Join(t.TempDir(), "config.json")
	loginNoBrowser = true

	if doc != nil {
		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("marshaling document: %v", err)
		}
		if err := os.WriteFile(rootConfigPath, data, 0600); err != nil {
			t.Fatalf("writing document: %v", err)
		}
	}
}

func TestRunAuthLoginWithoutConfiguration(t *testing.T) {
	withLoginConfig(t, nil)

	err := runAuthLogin(authLoginCmd, []string{})
	if err == nil {
		t.Fatal("expected error when no configuration exists")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("expected a not-configured error, got: %v", err)
	}
}

func TestRunAuthLoginRejectsNonLocalRedirect(t *testing.T) {
	withLoginConfig(t, map[string]any{
		"clientId":     "client-id",
		"clientSecret": "client-secret",
		"redirectUri":  "http://example.com/callback",
	})

	err := runAuthLogin(authLoginCmd, []string{})
	if err == nil {
		t.Fatal("expected error for a non-local redirect URI")
	}
	if !strings.Contains(err.Error(), "localhost redirect") {
		t.Errorf("expected a localhost redirect error, got: %v", err)
	}
}

func TestRunAuthLoginAlreadyAuthorized(t *testing.T) {
	withLoginConfig(t, map[string]any{
		"clientId":     "client-id",
		"clientSecret": "client-secret",
		"redirectUri":  "http://127.0.0.1:8888/callback",
		"accessToken":  "access-0",
		"refreshToken": "refresh-0",
		"expiresAt":    time.Now().Add(time.Hour).UnixMilli(),
	})

	if err := runAuthLogin(authLoginCmd, []string{}); err != nil {
		t.Fatalf("expected already-authorized login to succeed, got: %v", err)
	}
}

func TestRunAuthLoginTimesOutWaitingForCallback(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding a free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	withLoginConfig(t, map[string]any{
		"clientId":     "client-id",
		"clientSecret": "client-secret",
		"redirectUri":  fmt.Sprintf("http://127.0.0.1:%d/callback", port),
	})
	loginTimeout = 150 * time.Millisecond

	start := time.Now()
	err = runAuthLogin(authLoginCmd, []string{})
	if err == nil {
		t.Fatal("expected a timeout error when no callback arrives")
	}
	if !strings.Contains(err.Error(), "gave up waiting") {
		t.Errorf("expected a gave-up error, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("login took too long to give up: %v", elapsed)
	}
}
