package vault

import (
	"bytes"
	"context"
	mrand "math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKDF = KDFParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

func testProviders(t *testing.T) map[string]KeyProvider {
	t.Helper()
	dir := t.TempDir()
	return map[string]KeyProvider{
		"memory/aes-gcm": NewMemoryKeyring(SuiteAESGCM),
		"memory/xchacha": NewMemoryKeyring(SuiteXChaCha20Poly1305),
		"file/aes-gcm":   NewFileKeyring(filepath.Join(dir, "a", "keyring"), "pw", SuiteAESGCM, WithKDFParams(testKDF)),
		"file/xchacha":   NewFileKeyring(filepath.Join(dir, "b", "keyring"), "pw", SuiteXChaCha20Poly1305, WithKDFParams(testKDF)),
	}
}

func TestVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, keys := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			v := New(keys)
			plaintext := []byte(`{"idNumber":"123456789"}`)

			blob, err := v.Encrypt(ctx, plaintext, PIIKey)
			require.NoError(t, err)
			assert.NotContains(t, string(blob.Ciphertext), "123456789")

			got, err := v.Decrypt(ctx, blob, PIIKey)
			require.NoError(t, err)
			assert.Equal(t, plaintext, got)

			again, err := v.Encrypt(ctx, plaintext, PIIKey)
			require.NoError(t, err)
			assert.NotEqual(t, blob.IV, again.IV, "iv must be fresh per encryption")
			assert.NotEqual(t, blob.Ciphertext, again.Ciphertext)
		})
	}
}

func TestVaultRoundTripSizes(t *testing.T) {
	ctx := context.Background()
	rng := mrand.New(mrand.NewSource(7))

	plaintexts := [][]byte{{}, make([]byte, 4096)}
	for i := 0; i < 64; i++ {
		p := make([]byte, rng.Intn(4097))
		rng.Read(p)
		plaintexts = append(plaintexts, p)
	}

	for name, keys := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			v := New(keys)
			for i, plaintext := range plaintexts {
				blob, err := v.Encrypt(ctx, plaintext, SecretWrapKey)
				require.NoError(t, err, "plaintext %d", i)

				got, err := v.Decrypt(ctx, blob, SecretWrapKey)
				require.NoError(t, err, "plaintext %d", i)
				assert.True(t, bytes.Equal(plaintext, got), "plaintext %d (len %d) changed", i, len(plaintext))
			}
		})
	}
}

func TestVaultFailsClosed(t *testing.T) {
	ctx := context.Background()
	for name, keys := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			v := New(keys)
			blob, err := v.Encrypt(ctx, []byte("secret scalar hex"), SecretWrapKey)
			require.NoError(t, err)

			tamperedCT := &EncryptedBlob{Ciphertext: append([]byte(nil), blob.Ciphertext...), IV: blob.IV}
			tamperedCT.Ciphertext[0] ^= 0x01
			_, err = v.Decrypt(ctx, tamperedCT, SecretWrapKey)
			assert.ErrorIs(t, err, ErrDecryptionFailed)

			tamperedIV := &EncryptedBlob{Ciphertext: blob.Ciphertext, IV: append([]byte(nil), blob.IV...)}
			tamperedIV.IV[len(tamperedIV.IV)-1] ^= 0x80
			_, err = v.Decrypt(ctx, tamperedIV, SecretWrapKey)
			assert.ErrorIs(t, err, ErrDecryptionFailed)

			short := &EncryptedBlob{Ciphertext: blob.Ciphertext, IV: blob.IV[:4]}
			_, err = v.Decrypt(ctx, short, SecretWrapKey)
			assert.ErrorIs(t, err, ErrDecryptionFailed)

			_, err = v.Decrypt(ctx, nil, SecretWrapKey)
			assert.ErrorIs(t, err, ErrDecryptionFailed)

			_, err = v.Encrypt(ctx, []byte("pii"), PIIKey)
			require.NoError(t, err)
			_, err = v.Decrypt(ctx, blob, PIIKey)
			assert.ErrorIs(t, err, ErrDecryptionFailed, "blob sealed under another handle")
		})
	}
}

func TestVaultMissingKey(t *testing.T) {
	ctx := context.Background()
	keys := NewMemoryKeyring(SuiteAESGCM)
	v := New(keys)

	blob, err := v.Encrypt(ctx, []byte("x"), SecretWrapKey)
	require.NoError(t, err)

	keys.Delete(SecretWrapKey)
	_, err = v.Decrypt(ctx, blob, SecretWrapKey)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestAESGCMLayout(t *testing.T) {
	v := New(NewMemoryKeyring(SuiteAESGCM))
	blob, err := v.Encrypt(context.Background(), []byte("abc"), PIIKey)
	require.NoError(t, err)
	assert.Len(t, blob.IV, 12)
	assert.Len(t, blob.Ciphertext, 3+16)
}

func TestFileKeyringPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "keyring")

	first := New(NewFileKeyring(path, "correct horse", SuiteAESGCM, WithKDFParams(testKDF)))
	blob, err := first.Encrypt(ctx, []byte("persisted"), SecretWrapKey)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened := New(NewFileKeyring(path, "correct horse", SuiteAESGCM))
	got, err := reopened.Decrypt(ctx, blob, SecretWrapKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)

	wrong := New(NewFileKeyring(path, "battery staple", SuiteAESGCM))
	_, err = wrong.Decrypt(ctx, blob, SecretWrapKey)
	assert.ErrorIs(t, err, ErrKeyUnavailable)
	assert.NotErrorIs(t, err, ErrDecryptionFailed)
}

func TestFileKeyringMissingFile(t *testing.T) {
	ctx := context.Background()
	keys := NewFileKeyring(filepath.Join(t.TempDir(), "keyring"), "pw", SuiteAESGCM)

	_, err := keys.Get(ctx, PIIKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = New(keys).Decrypt(ctx, &EncryptedBlob{IV: make([]byte, 12), Ciphertext: make([]byte, 32)}, PIIKey)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestKeyringHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryKeyring(SuiteAESGCM).GetOrCreate(ctx, PIIKey)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSuite(t *testing.T) {
	s, err := ParseSuite("")
	require.NoError(t, err)
	assert.Equal(t, SuiteAESGCM, s)

	s, err = ParseSuite("XChaCha20-Poly1305")
	require.NoError(t, err)
	assert.Equal(t, SuiteXChaCha20Poly1305, s)

	_, err = ParseSuite("rot13")
	assert.Error(t, err)
}
