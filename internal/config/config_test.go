package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()

	security, err := NewSecurityManagerAt(filepath.Join(dir, "security", "master.key"))
	require.NoError(t, err)

	manager, err := NewManagerWithPaths(filepath.Join(dir, "config", "profiles.yaml"), security)
	require.NoError(t, err)
	return manager
}

func TestDefaultConfigIsCreated(t *testing.T) {
	m := newTestManager(t)

	profile, err := m.LoadProfile(DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, profile.Host)
	assert.Equal(t, DefaultUsername, profile.Auth.Username)
	assert.Equal(t, DefaultHelperPath, profile.Helper.Path)
	assert.Equal(t, DefaultHelperVersion, profile.Helper.Version)
	assert.True(t, profile.Helper.Install)
	assert.True(t, profile.ShowStatus)

	_, err = os.Stat(m.GetConfigPath())
	assert.NoError(t, err)

	theme, err := m.LoadTheme(profile.Theme)
	require.NoError(t, err)
	assert.Equal(t, "monokai", theme.Code)
}

func TestPasswordsAreEncryptedAtRest(t *testing.T) {
	m := newTestManager(t)

	profile := DefaultProfile("klib")
	profile.Auth.PasswordSource = PasswordSourceConfig
	profile.Auth.Password = "hunter2"
	require.NoError(t, m.SaveProfile(&profile))

	data, err := os.ReadFile(m.GetConfigPath())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), encryptedPrefix)

	m.InvalidateCache()
	loaded, err := m.LoadProfile("klib")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", loaded.Auth.Password)
}

func TestListAndDeleteProfiles(t *testing.T) {
	m := newTestManager(t)

	for _, name := range []string{"zeta", "alpha"} {
		p := DefaultProfile(name)
		require.NoError(t, m.SaveProfile(&p))
	}

	names, err := m.ListProfiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "default", "zeta"}, names)

	require.NoError(t, m.DeleteProfile("zeta"))
	assert.Error(t, m.DeleteProfile("zeta"))
	assert.Error(t, m.DeleteProfile(DefaultProfileName))

	_, err = m.LoadProfile("zeta")
	assert.Error(t, err)
}

func TestValidateProfile(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name    string
		mutate  func(p *interfaces.Profile)
		wantErr string
	}{
		{"valid", func(p *interfaces.Profile) {}, ""},
		{"no name", func(p *interfaces.Profile) { p.Name = " " }, "name"},
		{"no port", func(p *interfaces.Profile) { p.Host = "localhost" }, "port"},
		{"no username", func(p *interfaces.Profile) { p.Auth.Username = "" }, "username"},
		{"bad source", func(p *interfaces.Profile) { p.Auth.PasswordSource = "vault" }, "password source"},
		{"helper suffix", func(p *interfaces.Profile) { p.Helper.Path = "/usr/System/sys/code_assist" }, ".c"},
		{"helper version", func(p *interfaces.Profile) { p.Helper.Version = 0 }, "version"},
		{"install disabled skips helper checks", func(p *interfaces.Profile) {
			p.Helper.Install = false
			p.Helper.Path = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile("test")
			tt.mutate(&p)
			err := m.ValidateProfile(&p)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}

	assert.Error(t, m.ValidateProfile(nil))
}

func TestSecurityManagerRoundTrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "master.key")
	s, err := NewSecurityManagerAt(keyPath)
	require.NoError(t, err)
	assert.True(t, s.SecureKeyExists())

	ciphertext, err := s.EncryptCredential("secret")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(ciphertext))

	// A second manager over the same salt derives the same key.
	again, err := NewSecurityManagerAt(keyPath)
	require.NoError(t, err)
	plain, err := again.DecryptCredential(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "secret", plain)

	_, err = again.DecryptCredential("enc:AAAA")
	assert.Error(t, err)

	require.NoError(t, s.ClearSecurityData())
	assert.False(t, s.SecureKeyExists())
	_, err = s.EncryptCredential("x")
	assert.Error(t, err)
}
