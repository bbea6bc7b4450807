package azuredevops

import (
	"errors"
	"os"
	"strings"

	"workbeat/internal/config"
)

// Config locates one Azure DevOps project. It lives in the config document's
// azureDevOps section; environment variables fill any gaps so the server can
// run against CI-provided credentials without editing the document.
type Config struct {
	OrgURL              string `json:"organizationUrl"`
	Project             string `json:"project"`
	Repository          string `json:"repository"`
	PersonalAccessToken string `json:"personalAccessToken"`
}

const sectionKey = "azureDevOps"

// Environment variable fallbacks, checked field by field.
const (
	envOrgURL     = "AZURE_DEVOPS_ORG_URL"
	envProject    = "AZURE_DEVOPS_PROJECT"
	envRepository = "AZURE_DEVOPS_REPOSITORY"
	envPAT        = "AZURE_DEVOPS_PAT"
)

var ErrNotConfigured = errors.New("Azure DevOps is not configured: set organizationUrl, project and personalAccessToken in the config document's azureDevOps section or the AZURE_DEVOPS_* environment variables")

// ConfigFromDocument assembles the client configuration from the document's
// azureDevOps section, with environment variables as per-field fallback. A
// nil or section-less document is fine; the environment may carry
// everything.
func ConfigFromDocument(doc *config.Document) Config {
	var cfg Config
	if doc != nil {
		// A missing section just means the environment must provide values.
		_ = doc.Section(sectionKey, &cfg)
	}

	if cfg.OrgURL == "" {
		cfg.OrgURL = os.Getenv(envOrgURL)
	}
	if cfg.Project == "" {
		cfg.Project = os.Getenv(envProject)
	}
	if cfg.Repository == "" {
		cfg.Repository = os.Getenv(envRepository)
	}
	if cfg.PersonalAccessToken == "" {
		cfg.PersonalAccessToken = os.Getenv(envPAT)
	}

	cfg.OrgURL = strings.TrimRight(strings.TrimSpace(cfg.OrgURL), "/")
	return cfg
}

// Validate reports whether the configuration can back a client. Repository
// is not required here; it is only needed for pull request creation and is
// checked there.
func (c Config) Validate() error {
	if c.OrgURL == "" || c.Project == "" || c.PersonalAccessToken == "" {
		return ErrNotConfigured
	}
	return nil
}
