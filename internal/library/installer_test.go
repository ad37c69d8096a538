package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperPath = "/usr/System/sys/code_assist.c"

func newLibrary(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "include"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "include", "status.h"), []byte("# define ST_VERSION 0\n"), 0644))
	return root
}

func TestInstallerCopiesMissingHelper(t *testing.T) {
	root := newLibrary(t)
	source := filepath.Join(t.TempDir(), "code_assist.c")
	require.NoError(t, os.WriteFile(source, []byte("int version() { return 11; }\n"), 0644))

	installer := NewInstaller(root, source)
	require.NoError(t, installer.EnsureHelperSource(helperPath))

	data, err := os.ReadFile(filepath.Join(root, "usr", "System", "sys", "code_assist.c"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "return 11")

	// Present now, so a second run is a no-op even without a source file.
	assert.NoError(t, NewInstaller(root, "").EnsureHelperSource(helperPath))
}

func TestInstallerRequiresLibraryRoot(t *testing.T) {
	err := NewInstaller(t.TempDir(), "").EnsureHelperSource(helperPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include/status.h")

	assert.Error(t, NewInstaller("", "").EnsureHelperSource(helperPath))
}

func TestInstallerNeedsSourceWhenMissing(t *testing.T) {
	root := newLibrary(t)

	err := NewInstaller(root, "").EnsureHelperSource(helperPath)
	assert.ErrorContains(t, err, "no helper source file")

	err = NewInstaller(root, filepath.Join(root, "nope.c")).EnsureHelperSource(helperPath)
	assert.ErrorContains(t, err, "failed to install helper source")
}
