package fsclient

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// BillyClient implements Client on top of a go-billy filesystem. root is the
// tree location inside that filesystem.
type BillyClient struct {
	fs   billy.Filesystem
	root string
}

func NewBillyClient(fsys billy.Filesystem, root string) *BillyClient {
	return &BillyClient{
		fs:   fsys,
		root: filepath.FromSlash(root),
	}
}

// NewOSClient returns a client for the directory at path on the local disk.
// A symlinked root is resolved, so only links below the root are skipped.
func NewOSClient(path string) (*BillyClient, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	switch {
	case err == nil:
		absPath = resolved
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	// A missing root is reported by the walker as a scan error.

	return NewBillyClient(osfs.New(absPath), ""), nil
}

func (c *BillyClient) Path(rel string) string {
	return filepath.Join(c.fs.Root(), c.root, filepath.FromSlash(rel))
}

func (c *BillyClient) Stat(rel string) (os.FileInfo, error) {
	return c.fs.Stat(c.full(rel))
}

func (c *BillyClient) Walk(walkFn filepath.WalkFunc) error {
	return util.Walk(c.fs, c.root, func(path string, info os.FileInfo, err error) error {
		rel, relErr := filepath.Rel(c.root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			rel = ""
		}
		return walkFn(filepath.ToSlash(rel), info, err)
	})
}

func (c *BillyClient) Open(rel string) (io.ReadCloser, error) {
	return c.fs.Open(c.full(rel))
}

func (c *BillyClient) Create(rel string, perm os.FileMode) (io.WriteCloser, error) {
	return c.fs.OpenFile(c.full(rel), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}

func (c *BillyClient) Rename(from, to string) error {
	return c.fs.Rename(c.full(from), c.full(to))
}

func (c *BillyClient) Remove(rel string) error {
	return c.fs.Remove(c.full(rel))
}

func (c *BillyClient) EnsureDir(rel string, perm os.FileMode) ([]string, error) {
	missing, err := c.missingDirs(rel)
	if err != nil || len(missing) == 0 {
		return nil, err
	}

	if err := c.fs.MkdirAll(c.full(rel), perm); err != nil {
		return nil, err
	}
	return missing, nil
}

// missingDirs returns rel and each of its ancestors that do not exist yet,
// outermost first.
func (c *BillyClient) missingDirs(rel string) ([]string, error) {
	var missing []string
	for dir := rel; dir != ""; dir = ParentDir(dir) {
		info, err := c.fs.Stat(c.full(dir))
		if err == nil {
			if !info.IsDir() {
				return nil, fmt.Errorf("%s exists and is not a directory", c.Path(dir))
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		missing = append([]string{dir}, missing...)
	}
	return missing, nil
}

func (c *BillyClient) RemoveEmptyDirs() ([]string, error) {
	var dirs []string
	err := c.Walk(func(rel string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if rel != "" && info.IsDir() {
			dirs = append(dirs, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Walk is pre-order, so walking the list backwards visits children
	// before their parents.
	var removed []string
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := c.fs.Remove(c.full(dirs[i])); err != nil {
			continue
		}
		removed = append(removed, dirs[i])
	}
	return removed, nil
}

func (c *BillyClient) full(rel string) string {
	return c.fs.Join(c.root, filepath.FromSlash(rel))
}
