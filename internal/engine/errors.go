package engine

import "errors"

// Pipeline failures the CLI tells apart from security denials.
var (
	ErrNotPDF         = errors.New("input is not a PDF")
	ErrUnknownProfile = errors.New("unknown profile")
	ErrFeatureLocked  = errors.New("feature not licensed")
)
