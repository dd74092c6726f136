package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/allsmog/zkekyc-go/pkg/vault"
)

// FileSecretStore keeps the slot in a single JSON document readable only by
// the owner. Writes go to a temp file that is renamed over the target.
type FileSecretStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSecretStore stores the slot at path
func NewFileSecretStore(path string) *FileSecretStore {
	return &FileSecretStore{path: path}
}

// SaveEnrollment replaces the slot
func (s *FileSecretStore) SaveEnrollment(ctx context.Context, e *Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e == nil || e.PrivateKey == nil {
		return ErrCorrupt
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := renameio.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// LoadWrappedSecret returns the wrapped secret
func (s *FileSecretStore) LoadWrappedSecret(ctx context.Context) (*vault.EncryptedBlob, error) {
	e, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return e.PrivateKey, nil
}

// LoadBinding returns the stored binding hashes
func (s *FileSecretStore) LoadBinding(ctx context.Context) (*Binding, error) {
	e, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &e.Binding, nil
}

// Exists reports whether the slot file is present
func (s *FileSecretStore) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// Clear removes the slot file
func (s *FileSecretStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *FileSecretStore) load(ctx context.Context) (*Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	raw, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var e Enrollment
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if e.PrivateKey == nil {
		return nil, fmt.Errorf("%w: missing private_key", ErrCorrupt)
	}
	return &e, nil
}
