package fsext

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountContainsPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("mount table lookup is only exercised on linux")
	}

	dir := t.TempDir()
	mount, err := Mount(dir)
	require.NoError(t, err)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.True(t, within(abs, mount.Mountpoint), "%s not under %s", abs, mount.Mountpoint)
	assert.NotEmpty(t, mount.Fstype)
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/usr/local/etc/haproxy.inbox", "/"))
	assert.True(t, within("/usr/local/etc/haproxy.inbox", "/usr/local"))
	assert.True(t, within("/usr/local", "/usr/local"))
	assert.False(t, within("/usr/localized", "/usr/local"))
}

func TestIsNetworkFS(t *testing.T) {
	for _, fs := range []string{"nfs", "NFS4", "cifs", "fuse.sshfs"} {
		assert.True(t, IsNetworkFS(fs), fs)
	}
	for _, fs := range []string{"ext4", "xfs", "tmpfs", "overlay", ""} {
		assert.False(t, IsNetworkFS(fs), fs)
	}
}
