package cmd

import (
	"github.com/spf13/cobra"
)

// Flags shared by the auth subcommands.
var (
	authCertDir string
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Spotify authorization",
	Long: `Manage the Spotify authorization for workbeat.

The playback tools need a Spotify account connected through the OAuth
authorization-code flow. These subcommands run that flow and report its
state.

Examples:
  workbeat auth login                  # Connect a Spotify account
  workbeat auth login --timeout 2m     # Give up if the browser step stalls
  workbeat auth status                 # Show the authorization state`,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)

	authCmd.PersistentFlags().StringVar(&authCertDir, "cert-dir", "certificates", "Directory holding cert.pem and key.pem for HTTPS redirect URIs")
}
