// Package vault seals small secrets under keys held by a KeyProvider.
//
// The device never sees raw key material: a KeyProvider hands out AEAD
// instances for a named KeyHandle, the way a platform keystore hands out
// non-exportable keys. Two handles are in use, one for the PII record sent at
// enrollment and one for wrapping the long-term proof secret at rest.
package vault

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// KeyHandle names a key inside a KeyProvider.
type KeyHandle string

const (
	// PIIKey seals the identity record submitted at enrollment.
	PIIKey KeyHandle = "ekyc_pii_encryption_key"

	// SecretWrapKey seals the long-term proof secret on the device.
	SecretWrapKey KeyHandle = "ekyc_zkp_key_wrapping_key"
)

var (
	// ErrDecryptionFailed covers tag mismatch, a missing key and malformed
	// blobs. Decrypt never returns partial plaintext.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrKeyNotFound is returned by KeyProvider.Get for an unknown handle.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyUnavailable means the key facility itself could not be used
	// (unreadable keyring, wrong passphrase).
	ErrKeyUnavailable = errors.New("key facility unavailable")

	// ErrCorruptBlob indicates a serialized blob missing a field or
	// carrying invalid base64.
	ErrCorruptBlob = errors.New("corrupt encrypted blob")
)

// KeyProvider is the secure key facility.
type KeyProvider interface {
	// GetOrCreate returns the AEAD for h, creating the key on first use.
	GetOrCreate(ctx context.Context, h KeyHandle) (AEAD, error)

	// Get returns the AEAD for an existing key or ErrKeyNotFound.
	Get(ctx context.Context, h KeyHandle) (AEAD, error)
}

// Vault encrypts and decrypts under keys from a KeyProvider.
type Vault struct {
	keys KeyProvider
	rand io.Reader
}

// New creates a vault backed by keys.
func New(keys KeyProvider) *Vault {
	return &Vault{keys: keys, rand: rand.Reader}
}

// Encrypt seals plaintext under h with a fresh random IV.
func (v *Vault) Encrypt(ctx context.Context, plaintext []byte, h KeyHandle) (*EncryptedBlob, error) {
	aead, err := v.keys.GetOrCreate(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain key %s: %w", h, err)
	}

	iv := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(v.rand, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	return &EncryptedBlob{
		Ciphertext: aead.Seal(nil, iv, plaintext, nil),
		IV:         iv,
	}, nil
}

// Decrypt opens blob under h. Every failure other than an unusable key
// facility is reported as ErrDecryptionFailed.
func (v *Vault) Decrypt(ctx context.Context, blob *EncryptedBlob, h KeyHandle) ([]byte, error) {
	if blob == nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, ErrCorruptBlob)
	}

	aead, err := v.keys.Get(ctx, h)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	case err != nil:
		return nil, fmt.Errorf("failed to obtain key %s: %w", h, err)
	}

	if len(blob.IV) != aead.NonceSize() || len(blob.Ciphertext) < aead.Overhead() {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, ErrCorruptBlob)
	}

	plaintext, err := aead.Open(nil, blob.IV, blob.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
