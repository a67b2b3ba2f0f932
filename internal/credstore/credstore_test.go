package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := NewFileStore(path)

	cred := &Credential{
		AccessToken:  "ac",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
	}
	if err := store.Save(cred); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0600 {
		t.Errorf("expected mode 0600, got %v", got)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AccessToken != "ac" || loaded.RefreshToken != "rt" {
		t.Errorf("unexpected credential: %+v", loaded)
	}
	if !loaded.ExpiresAt.Equal(cred.ExpiresAt) {
		t.Errorf("expiry mismatch: %v != %v", loaded.ExpiresAt, cred.ExpiresAt)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	if _, err := store.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestFileStore_DeleteIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileStore(path)
	if err := store.Delete(); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if err := store.Save(&Credential{RefreshToken: "rt"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file should be gone, stat err=%v", err)
	}
}

func TestCredential_ExpiresWithin(t *testing.T) {
	cred := &Credential{ExpiresAt: time.Now().Add(30 * time.Second)}
	if !cred.ExpiresWithin(time.Minute) {
		t.Error("token expiring in 30s should be inside a 1m margin")
	}
	if cred.ExpiresWithin(time.Second) {
		t.Error("token expiring in 30s should be outside a 1s margin")
	}
}
