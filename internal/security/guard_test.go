package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

type spyReporter struct {
	raws     []string
	policies []string
	errs     []error
}

func (s *spyReporter) ReportPathDenial(raw, policy string, err error) {
	s.raws = append(s.raws, raw)
	s.policies = append(s.policies, policy)
	s.errs = append(s.errs, err)
}

func newTestGuard(t *testing.T, opts ...Option) *Guard {
	t.Helper()
	g, err := NewGuard(opts...)
	if err != nil {
		t.Fatalf("NewGuard() error = %v", err)
	}
	return g
}

// canonicalTempDir resolves t.TempDir so expected paths compare equal
// on platforms where the temp root is itself a symlink.
func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks(tempdir) error = %v", err)
	}
	return dir
}

func TestValidateRawScreens(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"empty", "", ErrEmptyPath},
		{"nul byte", "report\x00.pdf", ErrNullByte},
		{"parent segment", "../secret.pdf", ErrTraversal},
		{"embedded parent", "a/../b.pdf", ErrTraversal},
		{"bare parent", "..", ErrTraversal},
		{"deep parent", "a/b/../../../../etc/passwd", ErrTraversal},
		{"current dir infix", "a/./b.pdf", ErrTraversal},
		{"trailing current dir", "a/.", ErrTraversal},
		{"encoded lowercase", "%2e%2e/secret.pdf", ErrEncodedTraversal},
		{"encoded uppercase", "%2E%2E/secret.pdf", ErrEncodedTraversal},
		{"encoded mixed case", "%2E%2e/secret.pdf", ErrEncodedTraversal},
		{"encoded half dot", ".%2e/secret.pdf", ErrEncodedTraversal},
		{"encoded separator", "..%2fsecret.pdf", ErrEncodedTraversal},
		{"encoded infix", "a/%2e%2e/b.pdf", ErrEncodedTraversal},
	}

	g := newTestGuard(t)
	for _, pol := range []Policy{PolicyStrict, PolicyNormal, PolicyRelaxed} {
		for _, tt := range tests {
			t.Run(pol.String()+"/"+tt.name, func(t *testing.T) {
				_, err := g.Validate(tt.raw, pol)
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate(%q, %v) error = %v, want %v", tt.raw, pol, err, tt.wantErr)
				}
				var perr *PathError
				if !errors.As(err, &perr) {
					t.Errorf("Validate(%q, %v) error type = %T, want *PathError", tt.raw, pol, err)
				}
			})
		}
	}
}

func TestValidateAllowsDottedNames(t *testing.T) {
	base := canonicalTempDir(t)
	tests := []string{"..cache", "a..b.pdf", "report.v2.pdf", "archive..2024"}

	g := newTestGuard(t)
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			raw := base + "/" + name
			got, err := g.Validate(raw, PolicyStrict)
			if err != nil {
				t.Fatalf("Validate(%q) error = %v", raw, err)
			}
			if got != raw {
				t.Errorf("Validate(%q) = %q, want unchanged", raw, got)
			}
		})
	}
}

func TestValidateIdempotent(t *testing.T) {
	base := canonicalTempDir(t)
	path := filepath.Join(base, "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := newTestGuard(t)
	for _, pol := range []Policy{PolicyStrict, PolicyNormal, PolicyRelaxed} {
		first, err := g.Validate(path, pol)
		if err != nil {
			t.Fatalf("first Validate under %v error = %v", pol, err)
		}
		second, err := g.Validate(first, pol)
		if err != nil {
			t.Fatalf("second Validate under %v error = %v", pol, err)
		}
		if second != first {
			t.Errorf("re-validation under %v changed %q to %q", pol, first, second)
		}
	}
}

func TestValidateMissingLeaf(t *testing.T) {
	base := canonicalTempDir(t)

	g := newTestGuard(t)
	t.Run("missing file resolves", func(t *testing.T) {
		want := filepath.Join(base, "out.pdf")
		got, err := g.Validate(want, PolicyStrict)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if got != want {
			t.Errorf("Validate() = %q, want %q", got, want)
		}
	})

	t.Run("missing ancestors resolve", func(t *testing.T) {
		want := filepath.Join(base, "a", "b", "out.pdf")
		got, err := g.Validate(want, PolicyStrict)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if got != want {
			t.Errorf("Validate() = %q, want %q", got, want)
		}
	})

	t.Run("file used as directory fails", func(t *testing.T) {
		plain := filepath.Join(base, "plain.txt")
		if err := os.WriteFile(plain, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := g.Validate(filepath.Join(plain, "out.pdf"), PolicyStrict)
		if !errors.Is(err, ErrResolution) {
			t.Errorf("Validate() error = %v, want %v", err, ErrResolution)
		}
	})
}

func TestPolicyScreens(t *testing.T) {
	base := canonicalTempDir(t)
	secret := filepath.Join(base, "secret.txt")
	critical := filepath.Join(base, "critical.txt")
	plain := filepath.Join(base, "plain.pdf")
	for _, p := range []string{secret, critical, plain} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	g := newTestGuard(t,
		WithSensitiveFiles([]string{secret, critical}),
		WithSensitiveDirs(nil),
		WithCriticalFile(critical),
	)

	tests := []struct {
		name    string
		raw     string
		pol     Policy
		wantErr error
	}{
		{"strict denies sensitive", secret, PolicyStrict, ErrSensitivePath},
		{"strict denies critical", critical, PolicyStrict, ErrSensitivePath},
		{"strict allows plain", plain, PolicyStrict, nil},
		{"normal allows sensitive", secret, PolicyNormal, nil},
		{"normal denies critical", critical, PolicyNormal, ErrSensitivePath},
		{"relaxed allows sensitive", secret, PolicyRelaxed, nil},
		{"relaxed allows critical", critical, PolicyRelaxed, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Validate(tt.raw, tt.pol)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate(%q, %v) error = %v, want %v", tt.raw, tt.pol, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%q, %v) error = %v", tt.raw, tt.pol, err)
			}
			if got != tt.raw {
				t.Errorf("Validate(%q, %v) = %q, want unchanged", tt.raw, tt.pol, got)
			}
		})
	}
}

func TestSymlinkScreen(t *testing.T) {
	base := canonicalTempDir(t)
	protected := filepath.Join(base, "protected")
	if err := os.MkdirAll(protected, 0o755); err != nil {
		t.Fatal(err)
	}
	inner := filepath.Join(protected, "inner.txt")
	if err := os.WriteFile(inner, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link.txt")
	if err := os.Symlink(inner, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	g := newTestGuard(t,
		WithSensitiveFiles(nil),
		WithSensitiveDirs([]string{protected}),
	)

	t.Run("strict denies symlink into protected dir", func(t *testing.T) {
		_, err := g.Validate(link, PolicyStrict)
		if !errors.Is(err, ErrSymlinkTarget) {
			t.Errorf("Validate(link) error = %v, want %v", err, ErrSymlinkTarget)
		}
	})

	t.Run("relaxed follows the symlink", func(t *testing.T) {
		got, err := g.Validate(link, PolicyRelaxed)
		if err != nil {
			t.Fatalf("Validate(link) error = %v", err)
		}
		if got != inner {
			t.Errorf("Validate(link) = %q, want %q", got, inner)
		}
	})

	t.Run("direct reference is not a symlink violation", func(t *testing.T) {
		got, err := g.Validate(inner, PolicyStrict)
		if err != nil {
			t.Fatalf("Validate(inner) error = %v", err)
		}
		if got != inner {
			t.Errorf("Validate(inner) = %q, want %q", got, inner)
		}
	})
}

func TestSystemPaths(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("requires the linux /etc layout")
	}

	g := newTestGuard(t)

	t.Run("tmp report allowed under strict", func(t *testing.T) {
		got, err := g.Validate("/tmp/report.pdf", PolicyStrict)
		if err != nil {
			t.Fatalf("Validate(/tmp/report.pdf) error = %v", err)
		}
		if filepath.Base(got) != "report.pdf" {
			t.Errorf("Validate(/tmp/report.pdf) = %q", got)
		}
	})

	t.Run("shadow denied under strict and normal", func(t *testing.T) {
		for _, pol := range []Policy{PolicyStrict, PolicyNormal} {
			if _, err := g.Validate("/etc/shadow", pol); !errors.Is(err, ErrSensitivePath) {
				t.Errorf("Validate(/etc/shadow, %v) error = %v, want %v", pol, err, ErrSensitivePath)
			}
		}
	})

	t.Run("shadow allowed under relaxed", func(t *testing.T) {
		got, err := g.Validate("/etc/shadow", PolicyRelaxed)
		if err != nil {
			t.Fatalf("Validate(/etc/shadow, relaxed) error = %v", err)
		}
		if got != "/etc/shadow" {
			t.Errorf("Validate(/etc/shadow, relaxed) = %q", got)
		}
	})

	t.Run("neighbor of sensitive file allowed", func(t *testing.T) {
		// Prefix matching must not smear /etc/passwd onto /etc/passwd-.
		if _, err := g.Validate("/etc/passwd-", PolicyStrict); err != nil {
			t.Errorf("Validate(/etc/passwd-) error = %v", err)
		}
	})
}

func TestWithinDir(t *testing.T) {
	tests := []struct {
		path, dir string
		want      bool
	}{
		{"/home/user/doc.pdf", "/home/user", true},
		{"/home/user", "/home/user", true},
		{"/home/userEVIL", "/home/user", false},
		{"/home", "/home/user", false},
	}
	for _, tt := range tests {
		if got := withinDir(tt.path, tt.dir); got != tt.want {
			t.Errorf("withinDir(%q, %q) = %v, want %v", tt.path, tt.dir, got, tt.want)
		}
	}
}

func TestReporterSeesAttacksOnly(t *testing.T) {
	spy := &spyReporter{}
	g := newTestGuard(t, WithReporter(spy))

	if _, err := g.Validate("../../etc/passwd", PolicyStrict); !errors.Is(err, ErrTraversal) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrTraversal)
	}
	if len(spy.errs) != 1 {
		t.Fatalf("reported %d incidents, want 1", len(spy.errs))
	}
	if spy.raws[0] != "../../etc/passwd" || spy.policies[0] != "strict" {
		t.Errorf("reported (%q, %q), want raw input and policy name", spy.raws[0], spy.policies[0])
	}
	if !errors.Is(spy.errs[0], ErrTraversal) {
		t.Errorf("reported error = %v, want %v", spy.errs[0], ErrTraversal)
	}

	// Benign failures stay out of the ledger.
	if _, err := g.Validate("", PolicyStrict); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("Validate(empty) error = %v", err)
	}
	if len(spy.errs) != 1 {
		t.Errorf("benign rejection was reported, ledger has %d entries", len(spy.errs))
	}
}

func TestNewGuardRejectsBadPattern(t *testing.T) {
	if _, err := NewGuard(WithSensitiveFiles([]string{"[unclosed"})); err == nil {
		t.Error("NewGuard() accepted an invalid pattern")
	}
}
