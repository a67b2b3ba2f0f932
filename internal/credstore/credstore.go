// Package credstore persists the OAuth credential between runs so a
// restart does not require re-authentication.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Credential holds the tokens returned by the provider.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresWithin reports whether the access token expires inside margin.
func (c *Credential) ExpiresWithin(margin time.Duration) bool {
	return time.Now().Add(margin).After(c.ExpiresAt)
}

// Store persists credentials. The file store below is the default; an
// OS-native keychain implementation can be swapped in behind the same
// interface.
type Store interface {
	Save(cred *Credential) error
	Load() (*Credential, error)
	Delete() error
}

// FileStore keeps the credential in a mode-0600 JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store rooted at path. An empty path uses the
// default location under the user config dir.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = defaultPath()
	}
	return &FileStore{path: path}
}

func defaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "driveshow", "token.json")
}

// Save writes the credential, creating parent directories as needed.
func (s *FileStore) Save(cred *Credential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Load reads a previously saved credential. A missing file returns
// os.ErrNotExist.
func (s *FileStore) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("parse credential file: %w", err)
	}
	return &cred, nil
}

// Delete removes the saved credential, ignoring a missing file.
func (s *FileStore) Delete() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
