package cache

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoot(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("home is not taken from $HOME here")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	root, err := DefaultRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cache", "llvmgr"), root)
}

func TestDefaultRootWithoutHome(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("home is not taken from $HOME here")
	}
	t.Setenv("HOME", "")

	_, err := DefaultRoot()
	assert.ErrorIs(t, err, ErrNoHome)
}

func TestOpenCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "cache")

	c, err := Open(root)
	require.NoError(t, err)
	assert.Equal(t, root, c.Root())
	assert.DirExists(t, root)
}

func TestPathAndDir(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	p := c.Path("16.0.1/llvm")
	assert.Equal(t, filepath.Join(c.Root(), "16.0.1", "llvm"), p)
	assert.NoDirExists(t, p, "Path must not create anything")

	d, err := c.Dir("16.0.1/llvm")
	require.NoError(t, err)
	assert.Equal(t, p, d)
	assert.DirExists(t, d)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func TestMoveDir(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "build", "bin")
	writeTree(t, src, map[string]string{"clang": "c", "sub/lld": "l"})
	dest := filepath.Join(base, "16.0.1")

	require.NoError(t, MoveDir(src, dest))

	assert.NoDirExists(t, src)
	got, err := os.ReadFile(filepath.Join(dest, "bin", "sub", "lld"))
	require.NoError(t, err)
	assert.Equal(t, "l", string(got))
}

func TestMoveDirMergesAndOverwrites(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "build", "lib")
	dest := filepath.Join(base, "out")
	writeTree(t, src, map[string]string{"a.so": "new", "b.so": "b"})
	writeTree(t, filepath.Join(dest, "lib"), map[string]string{"a.so": "old", "keep.so": "k"})

	require.NoError(t, MoveDir(src, dest))

	for name, want := range map[string]string{"a.so": "new", "b.so": "b", "keep.so": "k"} {
		got, err := os.ReadFile(filepath.Join(dest, "lib", name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got), name)
	}
	assert.NoDirExists(t, src)
}

func TestRemoveDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "llvm")
	writeTree(t, dir, map[string]string{"x/y.txt": "y"})

	require.NoError(t, RemoveDir(dir))
	assert.NoDirExists(t, dir)

	require.NoError(t, RemoveDir(dir), "removing a missing dir is fine")
}
