// ABOUTME: Session-scoped storage for a paid L402 macaroon and preimage pair.
// ABOUTME: Produces the Authorization header value replayed on routing calls.

package l402

import "sync"

// AuthScheme is the Authorization scheme used when replaying credentials.
const AuthScheme = "L402"

// CredentialStore holds at most one macaroon/preimage pair.
// The zero value is an empty store ready for use.
type CredentialStore struct {
	mu       sync.RWMutex
	macaroon string
	preimage string
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// Store replaces any existing credential. No format validation is applied.
func (s *CredentialStore) Store(macaroon, preimage string) {
	s.mu.Lock()
	s.macaroon = macaroon
	s.preimage = preimage
	s.mu.Unlock()
}

// AuthHeaderValue returns "L402 <macaroon>:<preimage>" and true when both
// parts are present, or "" and false otherwise.
func (s *CredentialStore) AuthHeaderValue() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.macaroon == "" || s.preimage == "" {
		return "", false
	}
	return AuthScheme + " " + s.macaroon + ":" + s.preimage, true
}

// HasCredentials reports whether a complete credential is stored.
func (s *CredentialStore) HasCredentials() bool {
	_, ok := s.AuthHeaderValue()
	return ok
}

// Clear erases the stored credential.
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	s.macaroon = ""
	s.preimage = ""
	s.mu.Unlock()
}
