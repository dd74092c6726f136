// Package storage holds the persistence layers of both protocol roles: the
// single enrollment slot on the device and the registry kept by the
// development verifier.
package storage

import (
	"fmt"
	"time"
)

// User status values
const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// User is an enrolled identity as recorded by the verifier
type User struct {
	ID              int64     `json:"id"`
	PublicKey       string    `json:"public_key"`   // compressed point, hex
	Commitment      string    `json:"commitment"`   // H(publicKey || idHash)
	IDHash          string    `json:"id_hash"`
	NameHash        string    `json:"name_hash"`
	DOBHash         string    `json:"dob_hash"`
	EncryptedPII    string    `json:"encrypted_pii"` // opaque to the verifier
	EnrollmentProof string    `json:"enrollment_proof"`
	Approval        int       `json:"approval"`
	Status          string    `json:"status"` // active|banned
	CreatedAt       time.Time `json:"created_at"`
}

// Session is a single-use verification challenge
type Session struct {
	ID        string    `json:"id"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore defines the interface for enrolled users
type UserStore interface {
	// CreateUser registers u and assigns its ID. Fails with ErrUserExists
	// when either the public key or the ID hash is already enrolled.
	CreateUser(u *User) (*User, error)

	// GetUserByPublicKey retrieves a user by public key
	GetUserByPublicKey(pk string) (*User, error)

	// GetUserByIDHash retrieves a user by ID document hash
	GetUserByIDHash(idHash string) (*User, error)

	// GetUser retrieves a user by ID
	GetUser(id int64) (*User, error)

	// UpdateUserStatus updates a user's status
	UpdateUserStatus(id int64, status string) error

	// ListUsers returns all users (for admin purposes)
	ListUsers() ([]User, error)
}

// SessionStore defines the interface for verification sessions
type SessionStore interface {
	// CreateSession stores a fresh session
	CreateSession(session *Session) error

	// GetSession retrieves a live session by ID
	GetSession(sessionID string) (*Session, error)

	// ConsumeSession marks a session used. A session can be consumed once.
	ConsumeSession(sessionID string) error

	// CleanupExpiredSessions removes sessions older than maxAge
	CleanupExpiredSessions(maxAge time.Duration) error
}

// NullifierStore remembers nullifiers of accepted verifications
type NullifierStore interface {
	// RecordNullifier stores n, failing with ErrNullifierUsed if it was
	// recorded before.
	RecordNullifier(n string) error

	// IsNullifierUsed reports whether n was recorded.
	IsNullifierUsed(n string) (bool, error)
}

// Registry combines all verifier storage interfaces
type Registry interface {
	UserStore
	SessionStore
	NullifierStore

	// Close releases resources
	Close() error

	// Ping checks if the storage is healthy
	Ping() error
}

var (
	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = fmt.Errorf("user not found")

	// ErrUserExists indicates the key or ID document is already enrolled
	ErrUserExists = fmt.Errorf("user already exists")

	// ErrSessionNotFound indicates a session was not found
	ErrSessionNotFound = fmt.Errorf("session not found")

	// ErrSessionExpired indicates a session has expired
	ErrSessionExpired = fmt.Errorf("session expired")

	// ErrSessionUsed indicates a session has already been used
	ErrSessionUsed = fmt.Errorf("session already used")

	// ErrNullifierUsed indicates a replayed nullifier
	ErrNullifierUsed = fmt.Errorf("nullifier already used")
)
