package command

import (
	"errors"
	"fmt"
)

// Execution rejection and failure reasons. The set is closed; callers
// match with errors.Is.
var (
	ErrNotAllowed  = errors.New("program not allowlisted")
	ErrArgRejected = errors.New("arguments rejected by program schema")
	ErrSpawn       = errors.New("spawn failed")
	ErrExit        = errors.New("nonzero exit")
)

// GateError carries the program name alongside the typed reason.
type GateError struct {
	Program string
	Err     error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("command %q: %v", e.Program, e.Err)
}

func (e *GateError) Unwrap() error { return e.Err }
