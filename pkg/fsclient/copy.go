package fsclient

import (
	"fmt"
	"io"
	"path"
)

// CopyFile copies the bytes of srcPath in src to dstPath in dst, replacing
// any existing file. The parent directory of dstPath must exist. Permission
// bits of the source are kept; other metadata is not.
func CopyFile(src Client, srcPath string, dst Client, dstPath string) (int64, error) {
	info, err := src.Stat(srcPath)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", src.Path(srcPath))
	}

	in, err := src.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := dst.Create(dstPath, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, err
	}
	return n, nil
}

// ParentDir returns the slash-separated parent of rel, "" for the root.
func ParentDir(rel string) string {
	dir := path.Dir(rel)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
