//go:build openbsd

package hardening

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	mu      sync.Mutex
	applied = false
)

// promises covers the whole run. pledge can only tighten, so
// everything the pipeline will need is requested upfront. No inet, no
// dns.
const promises = "stdio rpath wpath cpath fattr flock proc exec getpw tty"

// Apply reveals the working set and drops everything else. Call once
// at startup, after configuration is resolved and before any input is
// opened.
func Apply(p Paths) error {
	mu.Lock()
	defer mu.Unlock()
	if applied {
		return fmt.Errorf("hardening already applied")
	}
	if err := reveal(p); err != nil {
		return fmt.Errorf("unveil: %w", err)
	}
	if err := unix.UnveilBlock(); err != nil {
		return fmt.Errorf("unveil lock: %w", err)
	}
	if err := unix.PledgePromises(promises); err != nil {
		return fmt.Errorf("pledge: %w", err)
	}
	applied = true
	slog.Debug("sandbox active", "promises", promises)
	return nil
}

// Active reports whether the sandbox is up.
func Active() bool {
	mu.Lock()
	defer mu.Unlock()
	return applied
}

func reveal(p Paths) error {
	// Tool binaries, their libraries, and runtime lookups. The gate
	// execs through PATH, so the binary directories need x.
	system := []struct {
		path  string
		perms string
	}{
		{"/usr/lib", "r"},
		{"/usr/local/lib", "r"},
		{"/usr/libexec", "r"},
		{"/bin", "rx"},
		{"/usr/bin", "rx"},
		{"/usr/local/bin", "rx"},
		{"/etc/passwd", "r"},
		{"/usr/share/zoneinfo", "r"},
		{"/etc/localtime", "r"},
		{"/usr/local/share/ghostscript", "r"},
		{"/dev/null", "rw"},
		{"/dev/urandom", "r"},
	}
	for _, s := range system {
		if err := unix.Unveil(s.path, s.perms); err != nil {
			// Optional on a given install.
			slog.Debug("unveil skipped", "path", s.path, "error", err)
		}
	}

	for _, dir := range []string{p.TempRoot, p.OutputDir, p.IncidentDir, p.LogDir} {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", dir, err)
		}
		if err := unix.Unveil(abs, "rwc"); err != nil {
			return fmt.Errorf("unveil %s: %w", abs, err)
		}
	}

	// License material is verified, never written.
	if p.LicenseDir != "" {
		abs, err := filepath.Abs(p.LicenseDir)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p.LicenseDir, err)
		}
		if err := unix.Unveil(abs, "r"); err != nil {
			return fmt.Errorf("unveil %s: %w", abs, err)
		}
	}

	for _, in := range p.Inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			continue
		}
		if err := unix.Unveil(filepath.Dir(abs), "r"); err != nil {
			slog.Debug("unveil input skipped", "path", abs, "error", err)
		}
	}
	return nil
}
