package config

import (
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Known document fields. Everything else is passed through untouched.
const (
	keyClientID     = "clientId"
	keyClientSecret = "clientSecret"
	keyRedirectURI  = "redirectUri"
	keyAccessToken  = "accessToken"
	keyRefreshToken = "refreshToken"
	keyExpiresAt    = "expiresAt"
)

// Document is the parsed credential/token document. Fields keep the order
// they had on disk; writes touch only the keys they name, so unknown fields
// survive read-modify-write cycles.
type Document struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{fields: orderedmap.New[string, any]()}
}

// ParseDocument decodes a JSON object into a Document.
func ParseDocument(data []byte) (*Document, error) {
	fields := orderedmap.New[string, any]()
	if err := json.Unmarshal(data, fields); err != nil {
		return nil, err
	}
	return &Document{fields: fields}, nil
}

// Marshal encodes the document as indented JSON with a trailing newline,
// matching how the file is edited by hand.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d.fields, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ClientID returns the clientId field, or "" when absent.
func (d *Document) ClientID() string { return d.stringField(keyClientID) }

// ClientSecret returns the clientSecret field, or "" when absent.
func (d *Document) ClientSecret() string { return d.stringField(keyClientSecret) }

// RedirectURI returns the redirectUri field, or "" when absent.
func (d *Document) RedirectURI() string { return d.stringField(keyRedirectURI) }

// AccessToken returns the accessToken field, or "" when absent.
func (d *Document) AccessToken() string { return d.stringField(keyAccessToken) }

// RefreshToken returns the refreshToken field, or "" when absent.
func (d *Document) RefreshToken() string { return d.stringField(keyRefreshToken) }

// ExpiresAt returns the expiresAt field in epoch milliseconds. The second
// return is false when the field is absent or not a number.
func (d *Document) ExpiresAt() (int64, bool) {
	v, ok := d.fields.Get(keyExpiresAt)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// HasCredentials reports whether all three credential fields are present and
// non-empty.
func (d *Document) HasCredentials() bool {
	return d.ClientID() != "" && d.ClientSecret() != "" && d.RedirectURI() != ""
}

// HasTokens reports whether the document carries a usable token pair.
func (d *Document) HasTokens() bool {
	return d.AccessToken() != "" || d.RefreshToken() != ""
}

// SetTokens sets the three token fields. Existing fields keep their position
// in the document; new fields are appended at the end.
func (d *Document) SetTokens(accessToken, refreshToken string, expiresAt int64) {
	d.fields.Set(keyAccessToken, accessToken)
	d.fields.Set(keyRefreshToken, refreshToken)
	d.fields.Set(keyExpiresAt, expiresAt)
}

// Section decodes the named top-level field into out. Used by collaborators
// that keep their settings in the same document, e.g. the azureDevOps block.
func (d *Document) Section(key string, out any) error {
	v, ok := d.fields.Get(key)
	if !ok {
		return fmt.Errorf("section %q not present", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding section %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding section %q: %w", key, err)
	}
	return nil
}

// Keys returns the document's top-level keys in order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.fields.Len())
	for pair := d.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (d *Document) stringField(key string) string {
	v, ok := d.fields.Get(key)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
