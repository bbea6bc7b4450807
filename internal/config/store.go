package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"workbeat/pkg/logging"
)

const (
	documentName = "config.json"
	templateName = "config.example.json"
	backupSuffix = ".bak"

	userConfigDir = ".config/workbeat"
)

// Options configures Open.
type Options struct {
	// Path pins the active document to an explicit file instead of running
	// the search order. Used by --config and by tests.
	Path string
}

// Store is a handle to the active credential/token document. All operations
// go through the handle; there is no package-level mutable path.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open resolves the active document path and returns a handle to it. When no
// candidate file exists the first candidate becomes active so that
// self-healing can create it later.
func Open(opts Options) (*Store, error) {
	if opts.Path != "" {
		return &Store{path: opts.Path}, nil
	}

	candidates := searchCandidates()
	active := candidates[0]
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			active = candidate
			break
		}
	}

	abs, err := filepath.Abs(active)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", active, err)
	}

	logging.Debug("config", "Active configuration document: %s", abs)
	return &Store{path: abs}, nil
}

// searchCandidates returns the ordered set of document locations.
func searchCandidates() []string {
	candidates := []string{documentName}

	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), documentName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, userConfigDir, documentName))
	}

	return candidates
}

// Path returns the active document path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) templatePath() string {
	return filepath.Join(filepath.Dir(s.path), templateName)
}

func (s *Store) backupPath() string {
	return s.path + backupSuffix
}

// Load reads and parses the active document. It fails with ErrConfigMissing,
// ErrConfigInvalid or ErrConfigIncomplete; any other error is an I/O failure.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Document, error) {
	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	if !doc.HasCredentials() {
		return nil, fmt.Errorf("%w: %s must set clientId, clientSecret and redirectUri", ErrConfigIncomplete, s.path)
	}
	return doc, nil
}

// ReadDocument reads and parses the active document without Load's
// credential completeness check. Collaborators that keep their own section
// in the document use this, so they work before Spotify is configured.
func (s *Store) ReadDocument() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) readLocked() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigMissing, s.path)
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrConfigInvalid, s.path)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, s.path, err)
	}
	return doc, nil
}

// VerifyIntegrity reports whether the active document exists, parses and
// carries the three credential fields. A missing or empty document is seeded
// from the config.example.json template when one exists; a corrupt document
// is recovered from its .bak backup, else from the template.
func (s *Store) VerifyIntegrity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyLocked()
}

func (s *Store) verifyLocked() bool {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s.seedFromTemplateLocked()
	case err != nil:
		logging.Error("config", err, "Cannot read %s", s.path)
		return false
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return s.seedFromTemplateLocked()
	}

	doc, err := ParseDocument(data)
	if err != nil {
		logging.Warn("config", "%s is corrupt, attempting recovery", s.path)
		return s.recoverCorruptLocked()
	}
	return doc.HasCredentials()
}

// recoverCorruptLocked replaces a corrupt document from the backup when the
// backup holds usable content, else from the template.
func (s *Store) recoverCorruptLocked() bool {
	if data, err := os.ReadFile(s.backupPath()); err == nil {
		if doc, perr := ParseDocument(data); perr == nil && doc.HasCredentials() {
			if werr := s.writeFileLocked(data); werr == nil {
				logging.Info("config", "Restored %s from %s", s.path, s.backupPath())
				return true
			}
		}
	}
	return s.seedFromTemplateLocked()
}

func (s *Store) seedFromTemplateLocked() bool {
	data, err := os.ReadFile(s.templatePath())
	if err != nil {
		logging.Warn("config", "No template at %s to seed %s", s.templatePath(), s.path)
		return false
	}
	if err := s.writeFileLocked(data); err != nil {
		logging.Error("config", err, "Seeding %s from template failed", s.path)
		return false
	}
	logging.Info("config", "Seeded %s from %s", s.path, s.templatePath())
	return true
}

// Backup copies the active document to its .bak sibling. Callers treat a
// failure as non-fatal and log it.
func (s *Store) Backup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupLocked()
}

func (s *Store) backupLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading %s for backup: %w", s.path, err)
	}
	if err := os.WriteFile(s.backupPath(), data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", s.backupPath(), err)
	}
	return nil
}

// SaveTokens updates the three token fields in the active document, leaving
// every other field untouched. The write is atomic: integrity check (seeding
// from template when the document is gone), backup, read-modify-write to a
// temp file, rename into place, read-back verification. On failure the
// backup is restored before the error is returned. Token persistence failure
// must not abort an authorization flow; callers degrade to cache-only state.
func (s *Store) SaveTokens(accessToken, refreshToken string, expiresAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.verifyLocked() {
		return fmt.Errorf("token save aborted: %s failed integrity check", s.path)
	}
	if err := s.backupLocked(); err != nil {
		logging.Warn("config", "Backup before token save failed: %v", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.failSaveLocked(fmt.Errorf("reading %s: %w", s.path, err))
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return s.failSaveLocked(fmt.Errorf("parsing %s: %w", s.path, err))
	}

	doc.SetTokens(accessToken, refreshToken, expiresAt)
	out, err := doc.Marshal()
	if err != nil {
		return s.failSaveLocked(fmt.Errorf("encoding %s: %w", s.path, err))
	}
	if err := s.writeFileLocked(out); err != nil {
		return s.failSaveLocked(err)
	}

	written, err := os.ReadFile(s.path)
	if err != nil || len(bytes.TrimSpace(written)) == 0 {
		return s.failSaveLocked(fmt.Errorf("post-write verification of %s failed", s.path))
	}

	logging.Debug("config", "Persisted token update to %s (expiresAt=%d)", s.path, expiresAt)
	return nil
}

func (s *Store) failSaveLocked(err error) error {
	if s.restoreBackupLocked() {
		logging.Warn("config", "Restored %s from backup after failed token save", s.path)
	}
	return err
}

func (s *Store) restoreBackupLocked() bool {
	data, err := os.ReadFile(s.backupPath())
	if err != nil {
		return false
	}
	return s.writeFileLocked(data) == nil
}

// writeFileLocked writes data to a temp file in the document's directory and
// renames it into place, so a concurrent reader never observes a torn write.
func (s *Store) writeFileLocked(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting mode on %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}
