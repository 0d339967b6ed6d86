// ABOUTME: Explicitly owned per-client session context and its in-memory manager.
// ABOUTME: Each session carries its own L402 credential store and routing gateway.

package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/rendezvous-mcp/internal/l402"
	"github.com/2389/rendezvous-mcp/internal/routing"
)

// ErrNotFound indicates the session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is the state owned by one logical client. Credentials stored in a
// session are never visible to another.
type Session struct {
	ID              string
	ProtocolVersion string
	// Owner binds the session to the auth identity that created it.
	Owner       string
	CreatedAt   time.Time
	Credentials *l402.CredentialStore
	Gateway     *routing.Gateway

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// GatewayFactory builds the routing gateway for a new session around the
// session's own credential store.
type GatewayFactory func(creds *l402.CredentialStore) (*routing.Gateway, error)

// Manager creates and tracks sessions in memory.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	newGateway GatewayFactory
	idleTTL    time.Duration
	onDelete   func(sess *Session, hadCredentials bool)
	now        func() time.Time
}

// NewManager creates a session manager. Sessions idle longer than idleTTL
// are dropped by Sweep; zero disables expiry.
func NewManager(factory GatewayFactory, idleTTL time.Duration) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		newGateway: factory,
		idleTTL:    idleTTL,
		now:        time.Now,
	}
}

// OnDelete registers fn to run after a session is removed, whether by
// Delete or by expiry. hadCredentials reports whether a stored credential
// was discarded. It must be called before the manager is used.
func (m *Manager) OnDelete(fn func(sess *Session, hadCredentials bool)) {
	m.onDelete = fn
}

// Create starts a new session with an empty credential store.
func (m *Manager) Create(protocolVersion, owner string) (*Session, error) {
	creds := l402.NewCredentialStore()
	gw, err := m.newGateway(creds)
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	now := m.now()
	sess := &Session{
		ID:              uuid.New().String(),
		ProtocolVersion: protocolVersion,
		Owner:           owner,
		CreatedAt:       now,
		Credentials:     creds,
		Gateway:         gw,
		lastSeen:        now,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	now := m.now()
	if m.expired(sess, now) {
		m.Delete(id)
		return nil, ErrNotFound
	}
	sess.touch(now)
	return sess, nil
}

// Delete removes a session and clears its credentials. It reports whether
// the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	sess, existed := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if existed {
		had := sess.Credentials.HasCredentials()
		sess.Credentials.Clear()
		if m.onDelete != nil {
			m.onDelete(sess, had)
		}
	}
	return existed
}

// Sweep removes idle sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	var stale []string

	m.mu.RLock()
	for id, sess := range m.sessions {
		if m.expired(sess, now) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if m.Delete(id) {
			removed++
		}
	}
	return removed
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expired(sess *Session, now time.Time) bool {
	return m.idleTTL > 0 && now.Sub(sess.LastSeen()) > m.idleTTL
}
