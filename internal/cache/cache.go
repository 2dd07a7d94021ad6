package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoHome is returned when the user's home directory cannot be resolved.
var ErrNoHome = errors.New("cache: cannot resolve home directory")

// DefaultRoot returns ~/.cache/llvmgr.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", fmt.Errorf("%w: %v", ErrNoHome, err)
	}
	return filepath.Join(home, ".cache", "llvmgr"), nil
}

// Cache is a directory tree holding downloads, build trees and installs.
type Cache struct {
	root string
}

// Open returns the cache rooted at root, creating it. An empty root means
// DefaultRoot.
func Open(root string) (*Cache, error) {
	if root == "" {
		var err error
		if root, err = DefaultRoot(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &Cache{root: root}, nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Path joins rel under the root without touching the filesystem.
func (c *Cache) Path(rel string) string {
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

// Dir joins rel under the root and creates the directory.
func (c *Cache) Dir(rel string) (string, error) {
	p := c.Path(rel)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", p, err)
	}
	return p, nil
}

// RemoveDir deletes dir and everything below it. A missing dir is not an
// error.
func RemoveDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

// MoveDir moves src into parent, so that it ends up at parent/<base of src>.
// When that target already exists the trees are merged and files from src
// win.
func MoveDir(src, parent string) error {
	target := filepath.Join(parent, filepath.Base(src))

	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
		if err := os.Rename(src, target); err == nil {
			return nil
		}
	}

	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(target, rel)

		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		os.Remove(dst)
		if err := os.Rename(p, dst); err == nil {
			return nil
		}
		return copyFile(p, dst)
	})
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	return RemoveDir(src)
}

func copyFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(link, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
