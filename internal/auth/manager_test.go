package auth

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

func profileWith(source, password string) *interfaces.Profile {
	return &interfaces.Profile{
		Name: "klib",
		Auth: interfaces.AuthConfig{Username: "admin", Password: password, PasswordSource: source},
	}
}

func TestResolvePasswordSources(t *testing.T) {
	storage := NewInMemorySecureStorage()
	require.NoError(t, storage.Store(PasswordKey("klib"), "from-keyring"))

	m, err := NewManager(storage)
	require.NoError(t, err)
	m.WithEnvironment(func(key string) (string, bool) {
		if key == PasswordEnvVar {
			return "from-env", true
		}
		return "", false
	})

	tests := []struct {
		source   string
		password string
		want     string
	}{
		{"", "from-config", "from-config"},
		{"config", "from-config", "from-config"},
		{"env", "", "from-env"},
		{"keyring", "", "from-keyring"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := m.ResolvePassword(profileWith(tt.source, tt.password))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePasswordFailures(t *testing.T) {
	m, err := NewManager(NewInMemorySecureStorage())
	require.NoError(t, err)
	m.WithEnvironment(func(string) (string, bool) { return "", false })

	_, err = m.ResolvePassword(profileWith("env", ""))
	assert.ErrorContains(t, err, PasswordEnvVar)

	_, err = m.ResolvePassword(profileWith("keyring", ""))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.ResolvePassword(profileWith("vault", ""))
	assert.Error(t, err)

	_, err = m.ResolvePassword(profileWith("config", "two\nlines"))
	assert.Error(t, err)

	_, err = m.ResolvePassword(nil)
	assert.Error(t, err)
}

func TestValidateCredentials(t *testing.T) {
	m, err := NewManager(NewInMemorySecureStorage())
	require.NoError(t, err)

	assert.NoError(t, m.ValidateCredentials("admin", "pass word"))
	assert.Error(t, m.ValidateCredentials("", "x"))
	assert.Error(t, m.ValidateCredentials("ad min", "x"))
	assert.Error(t, m.ValidateCredentials("admin", "x\r"))
}

func TestKeyringStorage(t *testing.T) {
	storage := NewKeyringStorage(keyring.NewArrayKeyring(nil))
	m, err := NewManager(storage)
	require.NoError(t, err)

	require.NoError(t, m.StorePassword("klib", "s3cret"))
	assert.True(t, m.HasStoredPassword("klib"))

	got, err := m.ResolvePassword(profileWith("keyring", ""))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, m.DeletePassword("klib"))
	assert.False(t, m.HasStoredPassword("klib"))
	assert.NoError(t, m.DeletePassword("klib"))

	_, err = storage.Retrieve(PasswordKey("klib"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, m.StorePassword("", "x"))
	assert.Error(t, m.StorePassword("klib", "a\nb"))
}
