//go:build !openbsd

package hardening

// Apply is a no-op off OpenBSD.
func Apply(p Paths) error { return nil }

// Active always reports false off OpenBSD.
func Active() bool { return false }
