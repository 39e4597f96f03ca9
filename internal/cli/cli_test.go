package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/command"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/config"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/engine"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
	"github.com/spf13/viper"
)

func TestSecurityDenialClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		denial bool
	}{
		{"nil", nil, false},
		{"traversal", fmt.Errorf("validate: %w", security.ErrTraversal), true},
		{"null byte", fmt.Errorf("validate: %w", security.ErrNullByte), true},
		{"encoded traversal", fmt.Errorf("validate: %w", security.ErrEncodedTraversal), true},
		{"symlink target", fmt.Errorf("validate: %w", security.ErrSymlinkTarget), true},
		{"sensitive path", fmt.Errorf("validate: %w", security.ErrSensitivePath), true},
		{"program denied", &command.GateError{Program: "curl", Err: command.ErrNotAllowed}, true},
		{"argv denied", &command.GateError{Program: "gs", Err: command.ErrArgRejected}, true},
		{"spawn failure", &command.GateError{Program: "gs", Err: command.ErrSpawn}, false},
		{"nonzero exit", &command.GateError{Program: "gs", Err: command.ErrExit}, false},
		{"not a pdf", engine.ErrNotPDF, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := securityDenial(tt.err); got != tt.denial {
				t.Errorf("securityDenial(%v) = %v, want %v", tt.err, got, tt.denial)
			}
		})
	}
}

func TestExpandInputsWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "notes.txt", filepath.Join("sub", "b.pdf")} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	extra := filepath.Join(t.TempDir(), "direct.pdf")
	if err := os.WriteFile(extra, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	inputs, err := expandInputs([]string{dir, extra})
	if err != nil {
		t.Fatalf("expandInputs() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "sub", "b.pdf"),
		extra,
	}
	if len(inputs) != len(want) {
		t.Fatalf("expandInputs() = %v, want %v", inputs, want)
	}
	for i := range want {
		if inputs[i] != want[i] {
			t.Errorf("inputs[%d] = %q, want %q", i, inputs[i], want[i])
		}
	}
}

func TestExpandInputsMissingArg(t *testing.T) {
	_, err := expandInputs([]string{filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("expandInputs() expected error for missing argument")
	}
}

func TestBatchFailurePrefersDenial(t *testing.T) {
	report := &engine.BatchReport{
		Items: []engine.BatchItem{
			{Input: "a.pdf", Err: engine.ErrNotPDF},
			{Input: "b.pdf", Err: fmt.Errorf("validate: %w", security.ErrTraversal)},
			{Input: "c.pdf"},
		},
		Succeeded: 1,
		Failed:    2,
	}
	err := batchFailure(report)
	if !securityDenial(err) {
		t.Errorf("batchFailure() = %v, want a security denial in the chain", err)
	}
	if !strings.Contains(err.Error(), "2 of 3") {
		t.Errorf("batchFailure() = %v, want failure count", err)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{2621440, "2.5 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.n); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

// TestBootstrapWiresComponents runs the real bootstrap against a
// scratch home directory and checks the assembly holds together.
func TestBootstrapWiresComponents(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()
	defer viper.Reset()
	config.SetViperDefaults()
	viper.Set("temp_root", t.TempDir())

	a, err := bootstrap()
	if err != nil {
		t.Fatalf("bootstrap() error = %v", err)
	}
	defer a.Close()

	if a.guard == nil || a.gate == nil || a.store == nil ||
		a.reporter == nil || a.validator == nil || a.comp == nil {
		t.Fatal("bootstrap() left a component unwired")
	}
	if got := a.validator.Dir(); got != filepath.Join(home, ".compresskit", "license") {
		t.Errorf("license dir = %q, want under scratch home", got)
	}
	info, err := os.Stat(a.reporter.Dir())
	if err != nil {
		t.Fatalf("incident dir not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != config.PrivateDirPerm {
		t.Errorf("incident dir mode = %o, want %o", perm, config.PrivateDirPerm)
	}
	if _, err := os.Stat(a.store.Dir()); err != nil {
		t.Errorf("temp dir not created: %v", err)
	}
}

// TestLicenseStatusCommand drives the command tree end to end with no
// license installed.
func TestLicenseStatusCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()
	defer viper.Reset()
	config.SetViperDefaults()
	viper.Set("temp_root", t.TempDir())

	var out strings.Builder
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetErr(nil)
	rootCmd.SetArgs([]string{"license", "status"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("license status error = %v", err)
	}
	if !strings.Contains(out.String(), "License: missing") {
		t.Errorf("output = %q, want missing status", out.String())
	}
	if !strings.Contains(out.String(), "advanced_compression") {
		t.Errorf("output = %q, want feature listing", out.String())
	}
}
