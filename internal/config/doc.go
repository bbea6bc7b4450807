// Package config manages the persisted credential and token document.
//
// The document is a single JSON file holding the Spotify client credentials
// (clientId, clientSecret, redirectUri), the current token triple
// (accessToken, refreshToken, expiresAt) and any additional sections other
// components store there (for example azureDevOps). Unknown fields survive
// every rewrite byte-for-byte and keep their relative order, so the file
// stays safe to edit by hand.
//
// A Store is an explicit handle to one document path, resolved once at
// construction and threaded through all operations. The search order for the
// active document is:
//
//  1. ./config.json
//  2. <executable directory>/config.json
//  3. ~/.config/workbeat/config.json
//
// The first existing file wins. When none exists the first candidate becomes
// the active path so that self-healing can create it.
//
// Durability model: token writes go through VerifyIntegrity (which seeds a
// missing or empty document from the config.example.json sibling template and
// recovers a corrupt one from its .bak sibling), then a fresh .bak backup,
// then a read-modify-write of only the token fields, written to a temporary
// file in the same directory and renamed into place. A failed save restores
// the backup before reporting the error. Callers treat save failures as
// non-fatal and degrade to cache-only persistence.
package config
