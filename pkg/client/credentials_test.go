package client

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCredentialStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewCredentialStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Authenticated() {
		t.Fatal("fresh store should be unauthenticated")
	}
	store.Set(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         &User{ID: "u1", Username: "alice", Role: RoleStaff},
	})

	reopened, err := NewCredentialStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	access, refresh := reopened.Tokens()
	if access != "access-1" || refresh != "refresh-1" {
		t.Errorf("tokens = %q, %q", access, refresh)
	}
	user := reopened.User()
	if user == nil || user.Username != "alice" {
		t.Errorf("user = %+v", user)
	}
}

func TestCredentialStoreUpdateTokensKeepsProfile(t *testing.T) {
	store := memoryStore(t)
	store.Set(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         &User{ID: "u1", Username: "alice"},
	})

	store.UpdateTokens("access-2", "refresh-2")

	access, refresh := store.Tokens()
	if access != "access-2" || refresh != "refresh-2" {
		t.Errorf("tokens = %q, %q", access, refresh)
	}
	if user := store.User(); user == nil || user.Username != "alice" {
		t.Errorf("profile lost on token rotation: %+v", user)
	}
}

func TestCredentialStoreClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewCredentialStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store.Set(Credential{AccessToken: "access-1", RefreshToken: "refresh-1"})
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("credential file missing after set: %v", err)
	}

	store.Clear()

	if store.Authenticated() {
		t.Error("store still authenticated after clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("credential file should be removed, stat err = %v", err)
	}
}

func TestCredentialStoreToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := NewCredentialStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Authenticated() {
		t.Error("corrupt file should read as unauthenticated")
	}
}
