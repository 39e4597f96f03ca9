package securefile

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// File operation failures. The I/O reasons are closed; ErrReleased is
// a lifecycle misuse, not an I/O outcome.
var (
	ErrPermission = errors.New("permission denied")
	ErrDiskFull   = errors.New("disk full")
	ErrCreate     = errors.New("create failed")
	ErrReleased   = errors.New("temp resource already released")
)

// FileError carries the failing operation and path alongside the
// typed reason.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// wrapIO maps an OS error onto the closed reason set. Anything that
// is not a permission or space problem counts as a create failure.
func wrapIO(op, path string, err error) error {
	reason := ErrCreate
	switch {
	case errors.Is(err, fs.ErrPermission):
		reason = ErrPermission
	case errors.Is(err, syscall.ENOSPC):
		reason = ErrDiskFull
	}
	return &FileError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", reason, err)}
}
