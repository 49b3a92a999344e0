package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	err := manager.Store(&Credential{Service: ServiceProvider, Token: "apify_api_abcdef123456"})
	require.NoError(t, err)

	got, err := manager.Retrieve(ServiceProvider)
	require.NoError(t, err)
	assert.Equal(t, "apify_api_abcdef123456", got.Token)
	assert.False(t, got.LastModified.IsZero())
	assert.Equal(t, "apify_api_abcdef123456", manager.Token(ServiceProvider))

	creds, err := manager.List()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, ServiceProvider, creds[0].Service)

	require.NoError(t, manager.Delete(ServiceProvider))
	_, err = manager.Retrieve(ServiceProvider)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, "", manager.Token(ServiceProvider))
	assert.Equal(t, 0, mockStore.Count())
}

func TestManagerValidation(t *testing.T) {
	manager, _ := NewMockManager()

	assert.Error(t, manager.Store(nil))
	assert.Error(t, manager.Store(&Credential{Service: ServiceProvider}))
	assert.ErrorIs(t, manager.Delete(ServiceTranscription), ErrCredentialsNotFound)
}

func TestManagerFallback(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = errors.New("keychain locked")
	failing.RetrieveError = errors.New("keychain locked")
	backup := NewMockStore()

	manager := NewManagerWithStores(failing, backup)
	require.NoError(t, manager.Store(&Credential{Service: ServiceTranscription, Token: "whisper-token"}))

	assert.True(t, backup.Exists(ServiceTranscription))
	assert.Equal(t, "whisper-token", manager.Token(ServiceTranscription))
}

func TestManagerStoreAllFail(t *testing.T) {
	only := NewMockStore()
	only.StoreError = errors.New("disk full")

	err := NewManagerWithStores(only).Store(&Credential{Service: ServiceProvider, Token: "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("REELSCOUT_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Service: ServiceProvider, Token: "secret-provider"}))
	require.NoError(t, store.Store(&Credential{Service: ServiceTranscription, Token: "secret-stt"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "secret-provider")

	// a second store over the same file decrypts it
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Retrieve(ServiceProvider)
	require.NoError(t, err)
	assert.Equal(t, "secret-provider", got.Token)

	creds, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	require.NoError(t, reopened.Delete(ServiceProvider))
	assert.False(t, reopened.Exists(ServiceProvider))
	require.NoError(t, reopened.Delete(ServiceTranscription))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, reopened.Delete(ServiceProvider), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("REELSCOUT_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Service: ServiceProvider, Token: "tok"}))

	t.Setenv("REELSCOUT_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve(ServiceProvider)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv("REELSCOUT_PASSPHRASE", "")
	dir := t.TempDir()

	_, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnvironmentStore(t *testing.T) {
	env := map[string]string{"REELSCOUT_PROVIDER_TOKEN": "from-env"}
	store := &EnvironmentStore{getenv: func(k string) string { return env[k] }}

	got, err := store.Retrieve(ServiceProvider)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got.Token)

	_, err = store.Retrieve(ServiceTranscription)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(ServiceTranscription))

	creds, err := store.List()
	require.NoError(t, err)
	assert.Len(t, creds, 1)

	assert.ErrorIs(t, store.Store(got), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(ServiceProvider), ErrStoreUnavailable)
}

func TestParseService(t *testing.T) {
	svc, err := ParseService("provider")
	require.NoError(t, err)
	assert.Equal(t, ServiceProvider, svc)

	_, err = ParseService("instagram")
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "apif...3456", Mask("apify_api_abcdef123456"))
}

func TestShowTokenGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowTokenGuide(&buf, ServiceProvider)
	assert.Contains(t, buf.String(), "REELSCOUT_PROVIDER_TOKEN")
}
