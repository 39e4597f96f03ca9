// Package security validates untrusted path strings before any other
// component touches the filesystem. Validation is reject-only: a path
// that fails any screen is returned as a typed error, never rewritten
// into something acceptable.
package security

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy selects how much of the validation pipeline applies to a
// path. All policies run the raw-string screens and resolution; they
// differ only in what they deny on the resolved result.
type Policy int

const (
	// PolicyStrict denies the sensitive file list outright and refuses
	// symlinks that resolve into a sensitive directory.
	PolicyStrict Policy = iota
	// PolicyNormal denies only the single critical credential file.
	PolicyNormal
	// PolicyRelaxed performs no checks beyond screening and resolution.
	PolicyRelaxed
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyNormal:
		return "normal"
	case PolicyRelaxed:
		return "relaxed"
	}
	return "unknown"
}

// Reporter receives path denials as they happen. Implemented by the
// incident ledger; a nil reporter disables reporting but never the
// denial itself.
type Reporter interface {
	ReportPathDenial(raw, policy string, err error)
}

// Guard validates untrusted paths against a fixed deny table. The
// table is copied at construction and never changes afterwards.
type Guard struct {
	sensitiveFiles []string // doublestar patterns over resolved paths
	sensitiveDirs  []string // literal directories, separator-aware
	criticalFile   string
	reporter       Reporter
}

// Option configures a Guard at construction.
type Option func(*Guard)

// WithSensitiveFiles replaces the Strict-policy file deny patterns.
func WithSensitiveFiles(patterns []string) Option {
	return func(g *Guard) {
		g.sensitiveFiles = append([]string(nil), patterns...)
	}
}

// WithSensitiveDirs replaces the directories the symlink screen
// protects.
func WithSensitiveDirs(dirs []string) Option {
	return func(g *Guard) {
		g.sensitiveDirs = append([]string(nil), dirs...)
	}
}

// WithCriticalFile replaces the single file Normal policy denies.
func WithCriticalFile(path string) Option {
	return func(g *Guard) { g.criticalFile = path }
}

// WithReporter wires denial reporting.
func WithReporter(r Reporter) Option {
	return func(g *Guard) { g.reporter = r }
}

// DefaultSensitiveFiles returns the built-in Strict deny patterns.
// The list is deliberately small; deployments extend it through
// configuration rather than this package guessing at completeness.
func DefaultSensitiveFiles() []string {
	return []string{
		"/etc/shadow",
		"/etc/gshadow",
		"/etc/passwd",
		"/etc/sudoers",
		"/etc/sudoers.d/**",
		"**/.ssh/id_*",
	}
}

// DefaultSensitiveDirs returns the directories the Strict symlink
// screen protects.
func DefaultSensitiveDirs() []string {
	return []string{"/proc", "/sys", "/dev", "/boot", "/etc/sudoers.d", "/root/.ssh"}
}

// DefaultCriticalFile is the one file Normal policy still denies.
const DefaultCriticalFile = "/etc/shadow"

// NewGuard builds a Guard from the default tables plus any overrides.
// Invalid deny patterns are a construction error, not a runtime skip.
func NewGuard(opts ...Option) (*Guard, error) {
	g := &Guard{
		sensitiveFiles: DefaultSensitiveFiles(),
		sensitiveDirs:  DefaultSensitiveDirs(),
		criticalFile:   DefaultCriticalFile,
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, pattern := range g.sensitiveFiles {
		if !doublestar.ValidatePattern(pattern) {
			return nil, &PathError{Path: pattern, Err: errors.New("invalid sensitive file pattern")}
		}
	}
	return g, nil
}

// Validate screens raw, resolves it, applies pol, and returns the
// canonical absolute path. Screens run on the raw string before any
// filesystem call; policy checks run on the resolved result only.
// Validating a previously returned path under the same policy yields
// the same path.
func (g *Guard) Validate(raw string, pol Policy) (string, error) {
	resolved, err := g.validate(raw, pol)
	if err != nil {
		if g.reporter != nil && attackCategory(err) {
			g.reporter.ReportPathDenial(raw, pol.String(), err)
		}
		return "", err
	}
	return resolved, nil
}

func (g *Guard) validate(raw string, pol Policy) (string, error) {
	if raw == "" {
		return "", reject(raw, ErrEmptyPath)
	}
	if strings.IndexByte(raw, 0) >= 0 {
		return "", reject(raw, ErrNullByte)
	}
	if hasTraversal(raw) {
		return "", reject(raw, ErrTraversal)
	}
	if hasEncodedTraversal(raw) {
		return "", reject(raw, ErrEncodedTraversal)
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", reject(raw, fmt.Errorf("%w: %v", ErrResolution, err))
	}
	resolved, err := resolveSymlinks(abs)
	if err != nil {
		return "", reject(raw, fmt.Errorf("%w: %v", ErrResolution, err))
	}

	if err := g.screen(abs, resolved, pol); err != nil {
		return "", reject(raw, err)
	}
	return resolved, nil
}

// screen applies the policy-specific checks to the resolved path.
func (g *Guard) screen(abs, resolved string, pol Policy) error {
	switch pol {
	case PolicyRelaxed:
		return nil
	case PolicyNormal:
		if g.criticalFile != "" && resolved == g.criticalFile {
			return ErrSensitivePath
		}
		return nil
	}

	for _, pattern := range g.sensitiveFiles {
		if ok, _ := doublestar.Match(pattern, resolved); ok {
			return ErrSensitivePath
		}
	}
	// The directory screen applies only when resolution moved the
	// path, i.e. a symlink pointed into the protected tree. Direct
	// references are governed by the file list alone.
	if resolved != abs {
		for _, dir := range g.sensitiveDirs {
			if withinDir(resolved, dir) {
				return ErrSymlinkTarget
			}
		}
	}
	return nil
}

// hasTraversal reports literal traversal markers: a ".." path
// element anywhere, a "/./" infix, or a trailing "/.". Names that
// merely contain dots ("..cache", "a..b") are not markers.
func hasTraversal(p string) bool {
	if strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return true
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// hasEncodedTraversal catches single-round percent-encoding of the
// literal markers. "%2e%2e" anywhere is rejected outright; otherwise
// one decode of %2e and %2f is screened again. Double encoding stays
// opaque and is not decoded.
func hasEncodedTraversal(p string) bool {
	lower := strings.ToLower(p)
	if strings.Contains(lower, "%2e%2e") {
		return true
	}
	decoded := strings.NewReplacer("%2e", ".", "%2f", "/").Replace(lower)
	return hasTraversal(decoded)
}

// resolveSymlinks canonicalizes abs. A missing leaf is not an error:
// output paths are validated before they exist, so resolution walks
// up to the nearest existing ancestor and reattaches the missing
// suffix unchanged.
func resolveSymlinks(abs string) (string, error) {
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	dir := filepath.Dir(abs)
	rest := filepath.Base(abs)
	for {
		resolved, err = filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", err
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// withinDir reports whether path equals dir or sits beneath it. The
// separator check prevents "/etc/passwdX" from matching "/etc/passwd".
func withinDir(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
