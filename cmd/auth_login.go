package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"workbeat/internal/cache"
	"workbeat/internal/config"
	"workbeat/internal/spotify/oauth"
	"workbeat/pkg/logging"
)

// Login-specific flags
var (
	loginTimeout   time.Duration
	loginNoBrowser bool
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Connect a Spotify account",
	Long: `Connect a Spotify account through the browser authorization flow.

The command builds an authorization URL, opens it in your browser and waits
for Spotify to redirect back to the local callback listener. The redirect
URI in the configuration document must point at localhost for the listener
to receive the callback. Tokens are persisted to the configuration document
once the flow completes.

There is no timeout by default; interrupt with Ctrl-C or pass --timeout.

Examples:
  workbeat auth login                  # Connect using the configured redirect
  workbeat auth login --timeout 2m     # Give up if the browser step stalls
  workbeat auth login --no-browser     # Print the URL instead of opening it`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", 0, "Give up waiting for the browser callback after this long (0 waits until interrupted)")
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the authorization URL without opening a browser")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if loginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, loginTimeout)
		defer cancel()
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	manager := oauth.NewManager(store, cache.New(time.Hour), oauth.ManagerOptions{CertDir: authCertDir})

	status := manager.CheckAuthStatus(ctx)
	if status.Authorized {
		fmt.Printf("%s %s\n", text.FgGreen.Sprint("✓"), status.Message)
		return nil
	}

	authURL, wait, err := manager.StartAuthorization(ctx)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrConfigMissing), errors.Is(err, config.ErrConfigIncomplete):
			return fmt.Errorf("spotify is not configured: %w", err)
		case errors.Is(err, oauth.ErrNonLocalRedirect):
			return fmt.Errorf("the browser flow needs a localhost redirect URI: %w", err)
		case errors.Is(err, oauth.ErrCertificatesUnavailable):
			return fmt.Errorf("the redirect URI uses https but no certificates were found in %s: %w", authCertDir, err)
		default:
			return fmt.Errorf("could not start the authorization flow: %w", err)
		}
	}

	fmt.Println("Open this URL to connect Spotify:")
	fmt.Printf("\n  %s\n\n", authURL)
	if !loginNoBrowser {
		if err := oauth.OpenBrowser(authURL); err != nil {
			logging.Warn("auth", "Could not open the browser: %v", err)
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for the browser callback..."
	s.Start()
	err = wait(ctx)
	s.Stop()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("gave up waiting for the browser callback: %w", err)
		}
		return fmt.Errorf("authorization failed: %w", err)
	}

	fmt.Println(text.FgGreen.Sprint("Spotify connected."))
	return nil
}
