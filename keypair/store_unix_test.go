//go:build unix

package keypair

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOrLoadOwnerOnlyPermissions(t *testing.T) {
	// A permissive umask must not leak group or other access.
	old := syscall.Umask(0)
	defer syscall.Umask(old)

	dir := t.TempDir()
	_, created, err := GenerateOrLoad(dir, DefaultStore())
	require.NoError(t, err)
	require.True(t, created)

	info, err := os.Stat(filepath.Join(dir, PrivateKeyFile))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	require.Zero(t, info.Mode().Perm()&0077, "group/other bits set: %o", info.Mode().Perm())
}

func TestPosixStoreTightensMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, PosixStore{}.WriteSecure(path, []byte("deadbeef")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
