package executor

import (
	"errors"
	"fmt"
)

var (
	ErrCopy   = errors.New("copy failed")
	ErrRename = errors.New("rename failed")
	ErrDelete = errors.New("delete failed")
	ErrMkdir  = errors.New("mkdir failed")
)

// OpError is returned for the operation that aborted a run. It matches one
// of the Err* sentinels with errors.Is and unwraps to the filesystem error.
type OpError struct {
	Kind error
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Is(target error) bool {
	return target == e.Kind
}
