package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"workbeat/internal/config"
	"workbeat/pkg/logging"
)

// Exit codes for CLI commands. The authorization flow reports every failure
// (missing configuration, non-local redirect, flow errors) with the general
// error code.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// Flags shared by every command.
var (
	rootConfigPath string
	rootDebug      bool
)

// rootCmd represents the base command for the workbeat application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "workbeat",
	Short: "Work item aware music for your development flow",
	Long: `workbeat is an MCP server that connects Azure DevOps and Spotify.
It exposes tools for retrieving work items, creating pull requests and
starting Spotify playback whose mood matches the work item you picked up.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if rootDebug {
			level = logging.LevelDebug
		}
		// Logs go to stderr so the stdio MCP transport keeps stdout clean.
		logging.InitForCLI(level, os.Stderr)
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles subcommands and flags.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "workbeat version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

// openStore resolves the active configuration document, honoring --config.
func openStore() (*config.Store, error) {
	return config.Open(config.Options{Path: rootConfigPath})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to the configuration document (default: search order)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
