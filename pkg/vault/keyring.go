package vault

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
)

// MemoryKeyring keeps random per-handle keys in process memory. Keys never
// leave the keyring; only AEAD instances are handed out.
type MemoryKeyring struct {
	mu    sync.RWMutex
	suite Suite
	keys  map[KeyHandle]AEAD
}

// NewMemoryKeyring creates an empty keyring for suite.
func NewMemoryKeyring(suite Suite) *MemoryKeyring {
	return &MemoryKeyring{
		suite: suite,
		keys:  make(map[KeyHandle]AEAD),
	}
}

// GetOrCreate implements KeyProvider.
func (k *MemoryKeyring) GetOrCreate(ctx context.Context, h KeyHandle) (AEAD, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if aead, ok := k.keys[h]; ok {
		return aead, nil
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	defer zeroBytes(key)

	aead, err := k.suite.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	k.keys[h] = aead
	return aead, nil
}

// Get implements KeyProvider.
func (k *MemoryKeyring) Get(ctx context.Context, h KeyHandle) (AEAD, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	aead, ok := k.keys[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, h)
	}
	return aead, nil
}

// Delete drops the key for h. Anything sealed under it becomes unrecoverable.
func (k *MemoryKeyring) Delete(h KeyHandle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, h)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
