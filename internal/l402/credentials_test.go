// ABOUTME: Tests for the session credential store.
// ABOUTME: Covers header formatting, overwrite, and clear semantics.

package l402

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialStore_EmptyByDefault(t *testing.T) {
	s := NewCredentialStore()

	v, ok := s.AuthHeaderValue()
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.False(t, s.HasCredentials())
}

func TestCredentialStore_StoreFormatsHeader(t *testing.T) {
	cases := []struct{ macaroon, preimage string }{
		{"mac123", "pre456"},
		{"AgEEbHNhdAJCAAB=", "0f0f0f"},
		{"with space", "x:y"},
	}
	for _, tc := range cases {
		s := NewCredentialStore()
		s.Store(tc.macaroon, tc.preimage)

		v, ok := s.AuthHeaderValue()
		assert.True(t, ok)
		assert.Equal(t, "L402 "+tc.macaroon+":"+tc.preimage, v)
	}
}

func TestCredentialStore_StoreOverwrites(t *testing.T) {
	s := NewCredentialStore()
	s.Store("first", "one")
	s.Store("second", "two")

	v, ok := s.AuthHeaderValue()
	assert.True(t, ok)
	assert.Equal(t, "L402 second:two", v)
}

func TestCredentialStore_Clear(t *testing.T) {
	s := NewCredentialStore()
	s.Store("mac123", "pre456")
	s.Clear()

	v, ok := s.AuthHeaderValue()
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestCredentialStore_PartialCredentialIsAbsent(t *testing.T) {
	var s CredentialStore
	s.Store("mac123", "")
	assert.False(t, s.HasCredentials())

	s.Store("", "pre456")
	assert.False(t, s.HasCredentials())
}
