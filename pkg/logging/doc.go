// Package logging provides centralized, structured logging for all workbeat
// components using the standard library's log/slog package.
//
// Log records carry a "subsystem" attribute that identifies the component
// emitting the record. Use stable subsystem names so output stays grep-able:
//
//   - "config" for configuration loading and persistence
//   - "cache" for the token cache layer
//   - "server" for MCP transport and tool dispatch
//   - "serve" and "auth" for the CLI commands
//
// The authorization flow in internal/spotify/oauth logs through log/slog
// directly; it shares the handler this package installs.
//
// Initialize once during process startup:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
// Then log through the package-level helpers:
//
//	logging.Info("config", "Loaded configuration from %s", path)
//	logging.Error("config", err, "Token persistence failed for %s", path)
//
// When serving on stdio, logs MUST go to stderr; stdout belongs to the
// protocol stream.
package logging
