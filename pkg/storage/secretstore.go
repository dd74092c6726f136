package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/allsmog/zkekyc-go/pkg/vault"
)

var (
	// ErrNotFound means the device holds no enrollment
	ErrNotFound = errors.New("no enrollment stored")

	// ErrUnavailable means the storage facility could not be used
	ErrUnavailable = errors.New("secret storage unavailable")

	// ErrCorrupt means a stored record exists but cannot be decoded
	ErrCorrupt = errors.New("stored enrollment is corrupt")
)

// Binding records the identity hashes an enrollment was bound to
type Binding struct {
	IDHash   string `json:"id_hash"`
	NameHash string `json:"name_hash"`
	DOBHash  string `json:"dob_hash"`
}

// Enrollment is the device's single persisted slot: the wrapped secret and
// the binding it was enrolled with
type Enrollment struct {
	PrivateKey *vault.EncryptedBlob `json:"private_key"`
	Binding
}

// SecretStore persists the device enrollment slot. SaveEnrollment replaces
// the slot atomically: readers see the old record or the new one, never a
// mix of both.
type SecretStore interface {
	SaveEnrollment(ctx context.Context, e *Enrollment) error
	LoadWrappedSecret(ctx context.Context) (*vault.EncryptedBlob, error)
	LoadBinding(ctx context.Context) (*Binding, error)
	Exists(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
}

// MemorySecretStore keeps the slot in memory
type MemorySecretStore struct {
	mu     sync.RWMutex
	record *Enrollment
}

// NewMemorySecretStore creates an empty in-memory slot
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{}
}

// SaveEnrollment replaces the slot
func (s *MemorySecretStore) SaveEnrollment(ctx context.Context, e *Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e == nil || e.PrivateKey == nil {
		return ErrCorrupt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = copyEnrollment(e)
	return nil
}

// LoadWrappedSecret returns the wrapped secret
func (s *MemorySecretStore) LoadWrappedSecret(ctx context.Context) (*vault.EncryptedBlob, error) {
	e, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return e.PrivateKey, nil
}

// LoadBinding returns the stored binding hashes
func (s *MemorySecretStore) LoadBinding(ctx context.Context) (*Binding, error) {
	e, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &e.Binding, nil
}

// Exists reports whether the slot is populated
func (s *MemorySecretStore) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record != nil, nil
}

// Clear empties the slot
func (s *MemorySecretStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}

func (s *MemorySecretStore) load(ctx context.Context) (*Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil, ErrNotFound
	}
	return copyEnrollment(s.record), nil
}

func copyEnrollment(e *Enrollment) *Enrollment {
	out := *e
	out.PrivateKey = &vault.EncryptedBlob{
		Ciphertext: append([]byte(nil), e.PrivateKey.Ciphertext...),
		IV:         append([]byte(nil), e.PrivateKey.IV...),
	}
	return &out
}
