package vault

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keyringVersion = 1
	keyringPrefix  = "ZKEKYCKR1\n"
	saltSize       = 16
	seedSize       = 32
)

// KDFParams are the argon2id cost parameters for sealing the keyring seed.
type KDFParams struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultKDFParams matches interactive-login cost on a phone-class device.
var DefaultKDFParams = KDFParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

type keyringEnvelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// FileKeyring persists a 32-byte master seed sealed under a passphrase and
// derives one key per handle from it with HKDF-SHA256.
type FileKeyring struct {
	path       string
	passphrase string
	suite      Suite
	params     KDFParams

	mu   sync.Mutex
	seed []byte
}

// FileKeyringOption customizes a FileKeyring.
type FileKeyringOption func(*FileKeyring)

// WithKDFParams overrides the argon2id cost used when creating a keyring.
func WithKDFParams(p KDFParams) FileKeyringOption {
	return func(k *FileKeyring) { k.params = p }
}

// NewFileKeyring opens (lazily) the keyring stored at path.
func NewFileKeyring(path, passphrase string, suite Suite, opts ...FileKeyringOption) *FileKeyring {
	k := &FileKeyring{
		path:       path,
		passphrase: passphrase,
		suite:      suite,
		params:     DefaultKDFParams,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// GetOrCreate implements KeyProvider. The keyring file is created on first use.
func (k *FileKeyring) GetOrCreate(ctx context.Context, h KeyHandle) (AEAD, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.load(); errors.Is(err, ErrKeyNotFound) {
		if err := k.create(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return k.derive(h)
}

// Get implements KeyProvider. A missing keyring file yields ErrKeyNotFound.
func (k *FileKeyring) Get(ctx context.Context, h KeyHandle) (AEAD, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.load(); err != nil {
		return nil, err
	}
	return k.derive(h)
}

func (k *FileKeyring) load() error {
	if k.seed != nil {
		return nil
	}

	raw, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: keyring %s", ErrKeyNotFound, k.path)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if !bytes.HasPrefix(raw, []byte(keyringPrefix)) {
		return fmt.Errorf("%w: unrecognized keyring format", ErrKeyUnavailable)
	}

	var env keyringEnvelope
	if err := json.Unmarshal(raw[len(keyringPrefix):], &env); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if env.Version != keyringVersion || env.KDF != "argon2id" || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return fmt.Errorf("%w: unsupported keyring envelope", ErrKeyUnavailable)
	}

	kek := argon2.IDKey([]byte(k.passphrase), env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads, chacha20poly1305.KeySize)
	defer zeroBytes(kek)

	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	seed, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(keyringPrefix))
	if err != nil {
		return fmt.Errorf("%w: wrong passphrase or tampered keyring", ErrKeyUnavailable)
	}
	k.seed = seed
	return nil
}

func (k *FileKeyring) create() error {
	seed := make([]byte, seedSize)
	salt := make([]byte, saltSize)
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	for _, b := range [][]byte{seed, salt, nonce} {
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
	}

	kek := argon2.IDKey([]byte(k.passphrase), salt, k.params.Time, k.params.MemoryKB, k.params.Threads, chacha20poly1305.KeySize)
	defer zeroBytes(kek)

	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	env := keyringEnvelope{
		Version:     keyringVersion,
		KDF:         "argon2id",
		KDFTime:     k.params.Time,
		KDFMemoryKB: k.params.MemoryKB,
		KDFThreads:  k.params.Threads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, seed, []byte(keyringPrefix)),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if err := renameio.WriteFile(k.path, append([]byte(keyringPrefix), raw...), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	k.seed = seed
	return nil
}

func (k *FileKeyring) derive(h KeyHandle) (AEAD, error) {
	key := make([]byte, KeySize)
	defer zeroBytes(key)

	r := hkdf.New(sha256.New, k.seed, nil, []byte("zkekyc/vault/"+string(h)+"/v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return k.suite.NewAEAD(key)
}
