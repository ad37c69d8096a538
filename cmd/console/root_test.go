package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"eval", "status", "profiles", "password"})

	for _, flag := range []string{"profile", "host", "theme", "no-color"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
	assert.NotNil(t, root.Flags().Lookup("no-status"))
}

func TestResolveProfileFromHost(t *testing.T) {
	deps := &dependencies{}

	profile, err := deps.resolveProfile(&globalOptions{host: "wiz@example.org:6047", theme: "light"})
	require.NoError(t, err)
	assert.Equal(t, "example.org:6047", profile.Host)
	assert.Equal(t, "wiz", profile.Auth.Username)
	assert.Equal(t, "light", profile.Theme)

	_, err = deps.resolveProfile(&globalOptions{host: "example.org:6047", profile: "dev"})
	assert.Error(t, err)
}

func TestDirectConnection(t *testing.T) {
	assert.False(t, (&globalOptions{}).directConnection())
	assert.False(t, (&globalOptions{host: "  "}).directConnection())
	assert.True(t, (&globalOptions{profile: "dev"}).directConnection())
}

func TestEvalRequiresExpression(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"eval"})
	root.SetOut(nilWriter{})
	root.SetErr(nilWriter{})
	assert.Error(t, root.Execute())
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }
