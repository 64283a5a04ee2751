package tokenstore

import (
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	assert.False(t, store.HasToken())
	token, err := store.GetToken()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.StoreToken("hello-world-token"))
	assert.True(t, store.HasToken())

	token, err = store.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "hello-world-token", token)

	require.NoError(t, store.ClearToken())
	assert.False(t, store.HasToken())
	// Clearing twice is fine.
	require.NoError(t, store.ClearToken())
}

func TestShortTokenRejected(t *testing.T) {
	store := NewFileStore(t.TempDir())
	err := store.StoreToken("short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestTokenFilePermissions(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.StoreToken("hello-world-token"))

	for _, name := range []string{"auth.json", "auth.json.key"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), name)
	}
}

func TestKeyStableAcrossStores(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewFileStore(dir).StoreToken("hello-world-token"))

	// A fresh store over the same directory reuses the persisted key.
	token, err := NewFileStore(dir).GetToken()
	require.NoError(t, err)
	assert.Equal(t, "hello-world-token", token)
}

func TestCorruptedTokenReadsAsLoggedOut(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.StoreToken("hello-world-token"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.json"), []byte(`{"token":"aa:bb:cc"}`), 0o600))
	token, err := store.GetToken()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.False(t, store.HasToken())
}

func TestEncryptDecryptSerializedForm(t *testing.T) {
	key := make([]byte, keyLen)
	_, err := rand.Read(key)
	require.NoError(t, err)

	serialized, err := encrypt("hello-world-token", key)
	require.NoError(t, err)

	parts := strings.Split(serialized, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], ivLen*2)
	assert.Len(t, parts[1], tagLen*2)

	plain, err := decrypt(serialized, key)
	require.NoError(t, err)
	assert.Equal(t, "hello-world-token", plain)
}

func TestDecryptValidatesSegments(t *testing.T) {
	key := make([]byte, keyLen)
	_, err := rand.Read(key)
	require.NoError(t, err)

	_, err = decrypt("only-one-segment", key)
	assert.Error(t, err)
	_, err = decrypt("aa:bb", key)
	assert.Error(t, err)
	_, err = decrypt("zz:zz:zz", key)
	assert.Error(t, err)
	// Valid hex, wrong lengths.
	_, err = decrypt("aabb:aabb:aabb", key)
	assert.Error(t, err)
}

type memBackend struct {
	values map[string]string
	err    error
}

func (m *memBackend) Get(key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[key], nil
}

func (m *memBackend) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func (m *memBackend) Delete(key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.values, key)
	return nil
}

func TestSecretStore(t *testing.T) {
	backend := &memBackend{values: map[string]string{}}
	store := NewSecretStore(backend)

	assert.False(t, store.HasToken())
	require.NoError(t, store.StoreToken("hello-world-token"))
	assert.True(t, store.HasToken())
	assert.Equal(t, "hello-world-token", backend.values["devark.auth.token"])

	token, err := store.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "hello-world-token", token)

	require.NoError(t, store.ClearToken())
	assert.False(t, store.HasToken())
}

func TestSecretStoreDeleteErrorSwallowed(t *testing.T) {
	backend := &memBackend{values: map[string]string{}, err: errors.New("keychain locked")}
	store := NewSecretStore(backend)
	assert.NoError(t, store.ClearToken())
	assert.False(t, store.HasToken())
}
