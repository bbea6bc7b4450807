package config

import "errors"

var (
	// ErrConfigMissing indicates that no document exists at the active path.
	ErrConfigMissing = errors.New("configuration file not found")

	// ErrConfigInvalid indicates the document exists but is empty or not
	// well-formed JSON.
	ErrConfigInvalid = errors.New("configuration file invalid")

	// ErrConfigIncomplete indicates the document parses but clientId,
	// clientSecret or redirectUri is missing.
	ErrConfigIncomplete = errors.New("configuration incomplete")
)
