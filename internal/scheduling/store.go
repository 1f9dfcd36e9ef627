package scheduling

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore keeps in-flight booking sessions in memory. Abandoned sessions
// are evicted after the TTL; the appointment record, if any was created,
// persists independently and is reconciled by webhooks.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	catalog  *Catalog
	ttl      time.Duration
	stop     chan struct{}
}

// NewSessionStore creates a store evicting idle sessions after ttl.
func NewSessionStore(catalog *Catalog, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s := &SessionStore{
		sessions: make(map[string]*Session),
		catalog:  catalog,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// Create starts a new session and returns it.
func (s *SessionStore) Create() *Session {
	session := NewSession(newSessionID(), s.catalog)
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

// Get returns the session for id. The pointer is shared across requests;
// Session's own methods serialize state transitions.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Close stops the eviction loop.
func (s *SessionStore) Close() {
	close(s.stop)
}

func (s *SessionStore) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.ttl)
			s.mu.Lock()
			for id, session := range s.sessions {
				if session.UpdatedAt.Before(cutoff) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}
