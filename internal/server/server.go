// Package server hosts the workbeat MCP server. It registers the work item,
// pull request and playback tools, runs the chosen transport and bridges
// tool calls to the Azure DevOps and Spotify clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"workbeat/internal/azuredevops"
	"workbeat/internal/config"
	"workbeat/internal/spotify"
	"workbeat/internal/spotify/oauth"
	"workbeat/pkg/logging"
)

// Transport selects how MCP clients reach the server.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable-http"
)

const (
	// DefaultListen is where the HTTP transports bind when no address is
	// configured.
	DefaultListen = "localhost:8096"

	shutdownTimeout = 5 * time.Second
)

// Options configure a Server.
type Options struct {
	// Name and Version identify the server during the MCP handshake.
	Name    string
	Version string

	// Transport chooses the wire protocol, stdio by default. Listen is the
	// bind address for the HTTP transports and is ignored for stdio.
	Transport Transport
	Listen    string

	// DevOpsHTTPClient overrides the HTTP client used for Azure DevOps
	// requests, for tests.
	DevOpsHTTPClient *http.Client
}

// Server exposes the workbeat tools over MCP.
type Server struct {
	opts    Options
	store   *config.Store
	auth    *oauth.Manager
	spotify *spotify.Client

	mcp        *mcpserver.MCPServer
	sse        *mcpserver.SSEServer
	streamable *mcpserver.StreamableHTTPServer
}

// New assembles a server and registers its tools. The Spotify client must be
// backed by the manager's current access token so tool calls pick up token
// refreshes without rebuilding the client.
func New(store *config.Store, auth *oauth.Manager, spotifyClient *spotify.Client, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "workbeat"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Transport == "" {
		opts.Transport = TransportStdio
	}
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}

	s := &Server{
		opts:    opts,
		store:   store,
		auth:    auth,
		spotify: spotifyClient,
	}
	s.mcp = mcpserver.NewMCPServer(
		opts.Name,
		opts.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithPromptCapabilities(false),
	)
	s.registerTools()
	return s
}

// Serve runs the configured transport until ctx is cancelled, then shuts the
// transport down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	switch s.opts.Transport {
	case TransportStdio:
		logging.Info("server", "Serving MCP over stdio")
		err := mcpserver.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil

	case TransportSSE:
		logging.Info("server", "Serving MCP over SSE on %s", s.opts.Listen)
		s.sse = mcpserver.NewSSEServer(
			s.mcp,
			mcpserver.WithBaseURL(fmt.Sprintf("http://%s", s.opts.Listen)),
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
			mcpserver.WithKeepAlive(true),
			mcpserver.WithKeepAliveInterval(30*time.Second),
		)
		return s.serveHTTP(ctx, s.sse.Start, s.sse.Shutdown)

	case TransportStreamableHTTP:
		logging.Info("server", "Serving MCP over streamable HTTP on %s", s.opts.Listen)
		s.streamable = mcpserver.NewStreamableHTTPServer(s.mcp)
		return s.serveHTTP(ctx, s.streamable.Start, s.streamable.Shutdown)

	default:
		return fmt.Errorf("unknown transport %q", s.opts.Transport)
	}
}

// serveHTTP runs an addressable transport in the background and translates
// context cancellation into a bounded shutdown.
func (s *Server) serveHTTP(ctx context.Context, start func(string) error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		if err := start(s.opts.Listen); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server on %s: %w", s.opts.Listen, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		logging.Error("server", err, "Transport shutdown error")
	}
	<-errCh
	return nil
}

// devopsClient builds an Azure DevOps client from the current document and
// environment. The document is read leniently so the DevOps tools keep
// working while Spotify is not yet configured.
func (s *Server) devopsClient() (*azuredevops.Client, error) {
	doc, err := s.store.ReadDocument()
	if err != nil {
		doc = nil
	}
	cfg := azuredevops.ConfigFromDocument(doc)
	return azuredevops.NewClient(cfg, azuredevops.ClientOptions{HTTPClient: s.opts.DevOpsHTTPClient})
}
