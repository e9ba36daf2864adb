package client

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

// Credential is the live token pair plus the authenticated profile.
// It is replaced wholesale on refresh and destroyed on logout or
// irrecoverable refresh failure.
type Credential struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	User         *User  `json:"user,omitempty"`
}

// CredentialStore holds the process-wide credential. Reads and writes
// are atomic: an in-flight call sees either the old token pair or the
// new one, never a partial write. With a non-empty path the credential
// is mirrored to disk so a restarted process resumes the session.
type CredentialStore struct {
	mu   sync.RWMutex
	cred *Credential
	path string
}

// NewCredentialStore returns an in-memory store. If path is non-empty
// the store persists to that file and loads any existing credential
// from it.
func NewCredentialStore(path string) (*CredentialStore, error) {
	s := &CredentialStore{path: path}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		// A corrupt credential file means "unauthenticated", not a fatal error
		return s, nil
	}
	if cred.AccessToken != "" || cred.RefreshToken != "" {
		s.cred = &cred
	}
	return s, nil
}

// Tokens returns the current access and refresh tokens, empty when
// unauthenticated.
func (s *CredentialStore) Tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return "", ""
	}
	return s.cred.AccessToken, s.cred.RefreshToken
}

// User returns the cached profile, or nil when unauthenticated.
func (s *CredentialStore) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil || s.cred.User == nil {
		return nil
	}
	u := *s.cred.User
	return &u
}

// Authenticated reports whether a credential is present.
func (s *CredentialStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred != nil && s.cred.AccessToken != ""
}

// Set replaces the stored credential, as on login.
func (s *CredentialStore) Set(cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &cred
	s.save()
}

// UpdateTokens swaps in a fresh token pair from a refresh exchange
// while keeping the cached profile.
func (s *CredentialStore) UpdateTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var user *User
	if s.cred != nil {
		user = s.cred.User
	}
	s.cred = &Credential{AccessToken: access, RefreshToken: refresh, User: user}
	s.save()
}

// Clear destroys the credential, as on logout or session expiry.
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	s.save()
}

// save mirrors the credential to disk. Callers hold the write lock.
func (s *CredentialStore) save() {
	if s.path == "" {
		return
	}
	if s.cred == nil {
		_ = os.Remove(s.path)
		return
	}
	data, err := json.Marshal(s.cred)
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0o600)
}
