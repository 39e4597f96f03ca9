package hardening

import (
	"runtime"
	"testing"
)

func TestApply(t *testing.T) {
	if runtime.GOOS == "openbsd" {
		t.Skip("pledge cannot be undone within the test process")
	}
	if err := Apply(Paths{TempRoot: t.TempDir(), Inputs: []string{"in.pdf"}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if Active() {
		t.Error("Active() reports a sandbox off openbsd")
	}
}
