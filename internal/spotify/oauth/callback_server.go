package oauth

import (
	"context"
	"crypto/tls"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"
)

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

// CompleteFunc runs the code exchange and persistence for a received
// authorization code. It executes inside the callback request handler,
// before the HTTP response is written, so the page reflects the outcome.
type CompleteFunc func(ctx context.Context, code string) error

// CallbackServer hosts exactly one OAuth redirect callback on localhost. It
// resolves once, successfully or not, and tears the listener down on every
// terminal branch so the port is never leaked.
type CallbackServer struct {
	cfg      Config
	state    string
	complete CompleteFunc

	server   *http.Server
	listener net.Listener
	resultCh chan error
	errorCh  chan error
	once     sync.Once
	path     string
}

// NewCallbackServer creates a callback server for one authorization attempt.
// state is the token issued at URL-build time; complete performs the code
// exchange.
func NewCallbackServer(cfg Config, state string, complete CompleteFunc) *CallbackServer {
	return &CallbackServer{
		cfg:      cfg,
		state:    state,
		complete: complete,
		resultCh: make(chan error, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start binds the listener described by the redirect URI and begins waiting
// for the callback. A non-local redirect host fails before any bind; for an
// https redirect the certificate pair is loaded first, so no listener is
// started when certificates are unreadable. The server stops itself when ctx
// is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	target, err := ParseRedirectURI(s.cfg.RedirectURI)
	if err != nil {
		return err
	}
	s.path = target.Path

	var cert tls.Certificate
	if target.Secure {
		certPath := filepath.Join(s.cfg.CertDir, "cert.pem")
		keyPath := filepath.Join(s.cfg.CertDir, "key.pem")
		cert, err = tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCertificatesUnavailable, err)
		}
	}

	addr := fmt.Sprintf("127.0.0.1:%d", target.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding callback listener on %s: %w", addr, err)
	}
	if target.Secure {
		listener = tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})
	}
	s.listener = listener

	// Unregistered paths get the mux's 404 without touching the pending flow.
	mux := http.NewServeMux()
	mux.HandleFunc(target.Path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	slog.Info("Callback listener started",
		"addr", addr,
		"path", target.Path,
		"https", target.Secure,
	)
	return nil
}

// Wait blocks until the flow resolves: a nil error on successful exchange, a
// terminal flow error, a listener transport error, or ctx cancellation.
func (s *CallbackServer) Wait(ctx context.Context) error {
	select {
	case err := <-s.resultCh:
		return err
	case err := <-s.errorCh:
		return fmt.Errorf("callback server failed: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleCallback admits exactly one callback via sync.Once.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

// processCallback validates the callback and runs the code exchange. The
// validation order is fixed: provider error, then state, then code presence,
// then exchange. Called exactly once.
func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()

	var failure error
	switch {
	case query.Get("error") != "":
		failure = &ProviderError{
			Code:        query.Get("error"),
			Description: query.Get("error_description"),
		}
	case query.Get("state") != s.state:
		slog.Warn("Callback state mismatch",
			"expected_state_len", len(s.state),
			"received_state_len", len(query.Get("state")),
		)
		failure = ErrStateMismatch
	case query.Get("code") == "":
		failure = ErrNoAuthorizationCode
	default:
		failure = s.complete(r.Context(), query.Get("code"))
	}

	s.renderPage(w, failure)

	select {
	case s.resultCh <- failure:
	default:
	}

	// Give the response time to flush before the listener goes away.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

func (s *CallbackServer) renderPage(w http.ResponseWriter, failure error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var tmpl *template.Template
	var data any
	if failure != nil {
		tmpl = template.Must(template.New("error").Parse(callbackErrorHTML))
		data = map[string]string{"Error": failure.Error()}
	} else {
		tmpl = template.Must(template.New("success").Parse(callbackSuccessHTML))
		data = map[string]string{}
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Stop gracefully shuts the callback server down. Safe to call repeatedly.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Path returns the callback path the server answers on.
func (s *CallbackServer) Path() string {
	return s.path
}
