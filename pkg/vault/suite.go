package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD is the sealing interface handed out by key providers.
type AEAD = cipher.AEAD

// Suite selects the AEAD construction used by a keyring.
type Suite string

const (
	// SuiteAESGCM is AES-256-GCM with a 12-byte IV and 16-byte tag, the
	// blob layout produced by hardware-backed keystore GCM keys.
	SuiteAESGCM Suite = "aes-256-gcm"

	// SuiteXChaCha20Poly1305 uses 24-byte random nonces.
	SuiteXChaCha20Poly1305 Suite = "xchacha20-poly1305"
)

// KeySize is the key length for every suite.
const KeySize = 32

// ParseSuite maps a configuration string to a Suite. Empty selects AES-GCM.
func ParseSuite(s string) (Suite, error) {
	switch Suite(strings.ToLower(strings.TrimSpace(s))) {
	case "", SuiteAESGCM:
		return SuiteAESGCM, nil
	case SuiteXChaCha20Poly1305:
		return SuiteXChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("unsupported cipher suite: %s", s)
	}
}

// NewAEAD builds the suite's AEAD over a 32-byte key.
func (s Suite) NewAEAD(key []byte) (AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("expected %d-byte key, got %d", KeySize, len(key))
	}
	switch s {
	case SuiteAESGCM, "":
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case SuiteXChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("unsupported cipher suite: %s", s)
	}
}
