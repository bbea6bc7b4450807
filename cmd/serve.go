package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"workbeat/internal/cache"
	"workbeat/internal/config"
	"workbeat/internal/server"
	"workbeat/internal/spotify"
	"workbeat/internal/spotify/oauth"
	"workbeat/pkg/logging"
)

// Serve-specific flags.
var (
	serveTransport   string
	serveListen      string
	serveCertDir     string
	serveWatchConfig bool
)

// serveCmd defines the serve command structure. This is the main command of
// workbeat: it starts the MCP server that AI assistants connect to.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workbeat MCP server",
	Long: `Starts the workbeat MCP server.

The server exposes tools for Azure DevOps work items and pull requests and
for Spotify playback. By default it speaks MCP over stdio, which is what
most AI assistant integrations expect. The sse and streamable-http
transports bind an HTTP listener instead.

Spotify must be authorized before the playback tools work. Run
'workbeat auth login' first, or call the spotify_auth_status tool to get an
authorization URL. The server picks up externally refreshed tokens from the
configuration document; with --watch-config it reloads them as soon as the
document changes.

Configuration:
  workbeat reads config.json from the current directory or from
  ~/.config/workbeat. Use --config to pin an explicit path.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to resolve configuration: %w", err)
	}
	if !store.VerifyIntegrity() {
		logging.Warn("serve", "Configuration document at %s is missing or unreadable; Spotify tools will ask for authorization", store.Path())
	}

	manager := oauth.NewManager(store, cache.New(time.Hour), oauth.ManagerOptions{CertDir: serveCertDir})
	spotifyClient := spotify.NewClient(manager.AccessToken, spotify.ClientOptions{})

	srv := server.New(store, manager, spotifyClient, server.Options{
		Version:   rootCmd.Version,
		Transport: server.Transport(serveTransport),
		Listen:    serveListen,
	})

	g, gctx := errgroup.WithContext(ctx)

	if serveWatchConfig {
		watcher := config.NewWatcher(store.Path(), 0, func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			status := manager.CheckAuthStatus(refreshCtx)
			logging.Debug("serve", "Configuration document reloaded: %s", status.Message)
		})
		if err := watcher.Start(gctx); err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		defer watcher.Stop()
	}

	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error { return keepTokenFresh(gctx, manager) })

	return g.Wait()
}

// keepTokenFresh re-resolves the authorization status on a timer so the
// access token is renewed ahead of expiry even when no tool calls arrive.
func keepTokenFresh(ctx context.Context, manager *oauth.Manager) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			status := manager.CheckAuthStatus(ctx)
			if !status.Authorized {
				logging.Debug("serve", "Spotify not authorized: %s", status.Message)
			}
		}
	}
}

// init registers the serve command and its flags with the root command.
func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveTransport, "transport", string(server.TransportStdio), "MCP transport: stdio, sse or streamable-http")
	serveCmd.Flags().StringVar(&serveListen, "listen", server.DefaultListen, "Bind address for the sse and streamable-http transports")
	serveCmd.Flags().StringVar(&serveCertDir, "cert-dir", "certificates", "Directory holding cert.pem and key.pem for HTTPS redirect URIs")
	serveCmd.Flags().BoolVar(&serveWatchConfig, "watch-config", false, "Reload tokens when the configuration document changes on disk")
}
