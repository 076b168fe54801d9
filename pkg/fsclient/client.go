package fsclient

import (
	"io"
	"os"
	"path/filepath"
)

// DirPerm is the mode used for every directory created in a tree.
const DirPerm os.FileMode = 0o755

// Client is the filesystem boundary for one directory tree. All paths are
// slash-separated and relative to the tree root; "" names the root itself.
type Client interface {
	// Path returns the display path of rel, including the tree root.
	Path(rel string) string
	Stat(rel string) (os.FileInfo, error)
	// Walk visits every entry below the root without following symlinks.
	Walk(walkFn filepath.WalkFunc) error
	Open(rel string) (io.ReadCloser, error)
	Create(rel string, perm os.FileMode) (io.WriteCloser, error)
	Rename(from, to string) error
	Remove(rel string) error
	// EnsureDir creates rel and its parents and returns the directories it
	// created, outermost first. It returns none when rel already existed.
	EnsureDir(rel string, perm os.FileMode) (created []string, err error)
	// RemoveEmptyDirs removes empty directories below the root, deepest
	// first, and returns the ones it removed. Removal failures are ignored.
	RemoveEmptyDirs() ([]string, error)
}
