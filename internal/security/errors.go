package security

import (
	"errors"
	"fmt"
)

// Path rejection reasons. The set is closed; callers match with
// errors.Is and must not invent new reasons.
var (
	ErrEmptyPath        = errors.New("empty path")
	ErrNullByte         = errors.New("path contains NUL byte")
	ErrTraversal        = errors.New("path traversal attempt")
	ErrEncodedTraversal = errors.New("encoded path traversal attempt")
	ErrResolution       = errors.New("path resolution failed")
	ErrSymlinkTarget    = errors.New("symlink resolves into sensitive directory")
	ErrSensitivePath    = errors.New("sensitive path denied")
)

// PathError carries the rejected input alongside its typed reason.
// The path is rendered Go-quoted so control bytes never reach a
// terminal or log line raw.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %q: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

func reject(raw string, reason error) error {
	return &PathError{Path: raw, Err: reason}
}

// attackCategory reports whether a rejection indicates deliberate
// probing rather than an ordinary mistake. Empty input and resolution
// failures are mistakes; everything else earns an incident.
func attackCategory(err error) bool {
	for _, target := range []error{
		ErrNullByte,
		ErrTraversal,
		ErrEncodedTraversal,
		ErrSymlinkTarget,
		ErrSensitivePath,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
