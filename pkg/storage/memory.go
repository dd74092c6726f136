package storage

import (
	"sync"
	"time"
)

// DefaultSessionTTL bounds how long a challenge session stays usable
const DefaultSessionTTL = 5 * time.Minute

// MemoryStore implements Registry in memory.
// This is suitable for development and testing, but not for production
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64]*User
	byPK       map[string]int64
	byIDHash   map[string]int64
	nextID     int64
	sessions   map[string]*Session
	nullifiers map[string]time.Time
	sessionTTL time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(sessionTTL time.Duration) *MemoryStore {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	store := &MemoryStore{
		users:      make(map[int64]*User),
		byPK:       make(map[string]int64),
		byIDHash:   make(map[string]int64),
		sessions:   make(map[string]*Session),
		nullifiers: make(map[string]time.Time),
		sessionTTL: sessionTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go store.cleanupLoop()

	return store
}

// cleanupLoop runs periodic cleanup of expired sessions
func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpiredSessions(s.sessionTTL)
		case <-s.stop:
			return
		}
	}
}

// CreateUser registers a new user
func (s *MemoryStore) CreateUser(u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPK[u.PublicKey]; exists {
		return nil, ErrUserExists
	}
	if _, exists := s.byIDHash[u.IDHash]; exists {
		return nil, ErrUserExists
	}

	s.nextID++
	stored := *u
	stored.ID = s.nextID
	stored.CreatedAt = s.now()
	if stored.Status == "" {
		stored.Status = StatusActive
	}

	s.users[stored.ID] = &stored
	s.byPK[stored.PublicKey] = stored.ID
	s.byIDHash[stored.IDHash] = stored.ID

	out := stored
	return &out, nil
}

// GetUserByPublicKey retrieves a user by public key
func (s *MemoryStore) GetUserByPublicKey(pk string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byPK[pk]
	if !exists {
		return nil, ErrUserNotFound
	}
	userCopy := *s.users[id]
	return &userCopy, nil
}

// GetUserByIDHash retrieves a user by ID document hash
func (s *MemoryStore) GetUserByIDHash(idHash string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byIDHash[idHash]
	if !exists {
		return nil, ErrUserNotFound
	}
	userCopy := *s.users[id]
	return &userCopy, nil
}

// GetUser retrieves a user by ID
func (s *MemoryStore) GetUser(id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

// UpdateUserStatus updates a user's status
func (s *MemoryStore) UpdateUserStatus(id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return ErrUserNotFound
	}
	user.Status = status
	return nil
}

// ListUsers returns all users
func (s *MemoryStore) ListUsers() ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	return users, nil
}

// CreateSession creates a new session
func (s *MemoryStore) CreateSession(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.CreatedAt = s.now()
	sessionCopy := *session
	s.sessions[session.ID] = &sessionCopy
	return nil
}

// GetSession retrieves a session by ID
func (s *MemoryStore) GetSession(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	if s.now().Sub(session.CreatedAt) > s.sessionTTL {
		return nil, ErrSessionExpired
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

// ConsumeSession marks a session as used
func (s *MemoryStore) ConsumeSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	if s.now().Sub(session.CreatedAt) > s.sessionTTL {
		return ErrSessionExpired
	}
	if session.Used {
		return ErrSessionUsed
	}

	session.Used = true
	return nil
}

// CleanupExpiredSessions removes expired sessions
func (s *MemoryStore) CleanupExpiredSessions(maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	for id, session := range s.sessions {
		if session.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
	return nil
}

// RecordNullifier stores a nullifier once
func (s *MemoryStore) RecordNullifier(n string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nullifiers[n]; exists {
		return ErrNullifierUsed
	}
	s.nullifiers[n] = s.now()
	return nil
}

// IsNullifierUsed reports whether a nullifier was recorded
func (s *MemoryStore) IsNullifierUsed(n string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.nullifiers[n]
	return exists, nil
}

// Close stops the cleanup loop
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Ping checks if the store is healthy (always true for memory store)
func (s *MemoryStore) Ping() error {
	return nil
}

// Stats returns storage statistics for monitoring
func (s *MemoryStore) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"users":      len(s.users),
		"sessions":   len(s.sessions),
		"nullifiers": len(s.nullifiers),
	}
}
