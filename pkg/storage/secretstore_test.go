package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allsmog/zkekyc-go/pkg/vault"
)

func sampleEnrollment(tag byte) *Enrollment {
	return &Enrollment{
		PrivateKey: &vault.EncryptedBlob{Ciphertext: []byte{tag, 2, 3}, IV: make([]byte, 12)},
		Binding:    Binding{IDHash: "id", NameHash: "name", DOBHash: "dob"},
	}
}

func secretStores(t *testing.T) map[string]SecretStore {
	return map[string]SecretStore{
		"memory": NewMemorySecretStore(),
		"file":   NewFileSecretStore(filepath.Join(t.TempDir(), "device", "enrollment.json")),
	}
}

func TestSecretStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range secretStores(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := store.Exists(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = store.LoadWrappedSecret(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.LoadBinding(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.SaveEnrollment(ctx, sampleEnrollment(1)))

			ok, err = store.Exists(ctx)
			require.NoError(t, err)
			assert.True(t, ok)

			blob, err := store.LoadWrappedSecret(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3}, blob.Ciphertext)

			binding, err := store.LoadBinding(ctx)
			require.NoError(t, err)
			assert.Equal(t, Binding{IDHash: "id", NameHash: "name", DOBHash: "dob"}, *binding)

			require.NoError(t, store.SaveEnrollment(ctx, sampleEnrollment(7)))
			blob, err = store.LoadWrappedSecret(ctx)
			require.NoError(t, err)
			assert.Equal(t, byte(7), blob.Ciphertext[0], "second enrollment overwrites the slot")

			require.NoError(t, store.Clear(ctx))
			_, err = store.LoadWrappedSecret(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, store.Clear(ctx), "clearing an empty slot is a no-op")
		})
	}
}

func TestSecretStoreRejectsIncompleteRecord(t *testing.T) {
	for name, store := range secretStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.SaveEnrollment(context.Background(), &Enrollment{Binding: Binding{IDHash: "id"}})
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestFileSecretStoreFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "enrollment.json")
	store := NewFileSecretStore(path)

	require.NoError(t, store.SaveEnrollment(ctx, sampleEnrollment(1)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"private_key": {"ciphertext": "AQID", "iv": "AAAAAAAAAAAAAAAA"},
		"id_hash": "id",
		"name_hash": "name",
		"dob_hash": "dob"
	}`, string(raw))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileSecretStoreReplacesSlot(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state", "device")
	path := filepath.Join(dir, "enrollment.json")
	store := NewFileSecretStore(path)

	require.NoError(t, store.SaveEnrollment(ctx, sampleEnrollment(1)))
	require.NoError(t, store.SaveEnrollment(ctx, sampleEnrollment(9)))

	blob, err := store.LoadWrappedSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(9), blob.Ciphertext[0])

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "enrollment.json", entries[0].Name())
}

func TestFileSecretStoreCorruption(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"not json":    "garbage",
		"missing key": `{"id_hash":"id"}`,
		"missing iv":  `{"private_key":{"ciphertext":"AQID"}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "enrollment.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			_, err := NewFileSecretStore(path).LoadWrappedSecret(ctx)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestFileSecretStoreUnavailable(t *testing.T) {
	dir := t.TempDir()
	// a directory where the file should be
	path := filepath.Join(dir, "enrollment.json")
	require.NoError(t, os.Mkdir(path, 0o700))

	store := NewFileSecretStore(path)
	err := store.SaveEnrollment(context.Background(), sampleEnrollment(1))
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = store.LoadWrappedSecret(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSecretStoreHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, store := range secretStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.SaveEnrollment(ctx, sampleEnrollment(1)), context.Canceled)
		})
	}
}
