package walker

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yuya-takeyama/strict-backup-sync/pkg/fsclient"
)

// FileInfo represents a regular file found in a tree
type FileInfo struct {
	RelPath string // Slash-separated path from the tree root
	Size    int64
}

// ScanError reports a tree that could not be scanned
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Walker walks one tree with exclude pattern support
type Walker struct {
	client   fsclient.Client
	excludes []string
}

// NewWalker creates a walker for the tree behind client
func NewWalker(client fsclient.Client, excludes []string) (*Walker, error) {
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(strings.TrimSuffix(pattern, "/")) {
			return nil, fmt.Errorf("invalid exclude pattern: %q", pattern)
		}
	}

	// Validate root exists and is a directory
	info, err := client.Stat("")
	if err != nil {
		return nil, &ScanError{Root: client.Path(""), Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: client.Path(""), Err: errors.New("not a directory")}
	}

	return &Walker{
		client:   client,
		excludes: excludes,
	}, nil
}

// Walk returns every regular file in the tree. Symlinks and other
// irregular files are skipped and never followed.
func (w *Walker) Walk() ([]FileInfo, error) {
	var files []FileInfo

	err := w.client.Walk(func(relPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		if w.isExcluded(relPath) {
			return nil
		}

		files = append(files, FileInfo{
			RelPath: relPath,
			Size:    info.Size(),
		})

		return nil
	})

	if err != nil {
		return nil, &ScanError{Root: w.client.Path(""), Err: err}
	}

	return files, nil
}

// isExcluded checks if a path matches any exclude pattern
func (w *Walker) isExcluded(path string) bool {
	for _, pattern := range w.excludes {
		// Handle directory patterns (ending with /)
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			// Check every parent directory of the file
			parts := strings.Split(path, "/")
			for i := 1; i < len(parts); i++ {
				subPath := strings.Join(parts[:i], "/")
				if matched, _ := doublestar.Match(dirPattern, subPath); matched {
					return true
				}
			}
		} else {
			// Regular file pattern
			if matched, _ := doublestar.Match(pattern, path); matched {
				return true
			}
		}
	}
	return false
}
