package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"workbeat/internal/azuredevops"
	"workbeat/internal/cache"
	"workbeat/internal/config"
	"workbeat/internal/spotify/oauth"
)

// statusCheckTimeout bounds the silent token refresh a status check may run.
const statusCheckTimeout = 15 * time.Second

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the authorization state",
	Long: `Show the current Spotify authorization state and where it comes from.

A near-expiry token is refreshed as part of the check, so a healthy setup
shows as authorized even when the persisted token was about to lapse. The
Azure DevOps configuration is summarized too.

Examples:
  workbeat auth status                 # Show the authorization state
  workbeat auth status --config c.json # Check a specific document`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()

	manager := oauth.NewManager(store, cache.New(time.Hour), oauth.ManagerOptions{CertDir: authCertDir})
	status := manager.CheckAuthStatus(ctx)

	fmt.Println("Spotify")
	fmt.Printf("  Document:  %s\n", store.Path())
	if status.Authorized {
		fmt.Printf("  Status:    %s\n", text.FgGreen.Sprint("Authorized"))
		fmt.Printf("             %s\n", status.Message)
		if exp := manager.ExpiresAt(); exp > 0 {
			fmt.Printf("  Expires:   %s\n", formatExpiry(exp, time.Now()))
		}
	} else {
		fmt.Printf("  Status:    %s\n", text.FgYellow.Sprint("Authorization required"))
		fmt.Printf("             %s\n", status.Message)
		if status.AuthURL != "" {
			fmt.Printf("  URL:       %s\n", status.AuthURL)
		}
		if !status.ServerAuthAvailable && status.AuthURL != "" {
			fmt.Printf("             %s\n", text.FgYellow.Sprint("The redirect URI is not local; the callback cannot be captured automatically."))
		}
	}

	devopsCfg := devopsConfig(store)
	fmt.Println("\nAzure DevOps")
	if err := devopsCfg.Validate(); err != nil {
		fmt.Printf("  Status:    %s\n", text.FgYellow.Sprint("Not configured"))
		fmt.Printf("             %v\n", err)
	} else {
		fmt.Printf("  Status:    %s\n", text.FgGreen.Sprint("Configured"))
		fmt.Printf("  Org:       %s\n", devopsCfg.OrgURL)
		fmt.Printf("  Project:   %s\n", devopsCfg.Project)
		if devopsCfg.Repository != "" {
			fmt.Printf("  Repo:      %s\n", devopsCfg.Repository)
		}
	}

	return nil
}

// devopsConfig reads the Azure DevOps section leniently, falling back to
// environment variables when the document is unreadable.
func devopsConfig(store *config.Store) azuredevops.Config {
	doc, err := store.ReadDocument()
	if err != nil {
		doc = nil
	}
	return azuredevops.ConfigFromDocument(doc)
}

// formatExpiry renders an epoch-millisecond expiry with the remaining time.
func formatExpiry(expiresAt int64, now time.Time) string {
	t := time.UnixMilli(expiresAt)
	remaining := t.Sub(now).Round(time.Second)
	if remaining <= 0 {
		return fmt.Sprintf("%s (%s)", t.Format(time.RFC3339), "expired")
	}
	return fmt.Sprintf("%s (in %s)", t.Format(time.RFC3339), remaining)
}
