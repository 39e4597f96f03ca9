package securefile

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
)

// State tracks a temp resource's lifecycle.
type State int

const (
	StateCreated  State = iota // exists, no content yet
	StateActive                // content written
	StateReleased              // closed and deleted, or promoted
)

// Temp is a single temp file owned by the operation that created it.
// It ends its life through Promote or Release, whichever comes first.
type Temp struct {
	path  string
	f     *os.File
	store *Store

	mu    sync.Mutex
	state State
}

// Path returns the temp file's location inside the private directory.
func (t *Temp) Path() string { return t.path }

// State returns the current lifecycle state.
func (t *Temp) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Write appends to the temp file.
func (t *Temp) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateReleased {
		return 0, &FileError{Op: "write", Path: t.path, Err: ErrReleased}
	}
	n, err := t.f.Write(p)
	if err != nil {
		return n, wrapIO("write", t.path, err)
	}
	t.state = StateActive
	return n, nil
}

// Promote validates dest, pins the final permissions, and renames the
// temp over it. The rename is the only step a concurrent reader can
// observe; on success the temp is consumed.
func (t *Temp) Promote(dest string, perm fs.FileMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateReleased {
		return &FileError{Op: "promote", Path: t.path, Err: ErrReleased}
	}
	validated, err := t.store.guard.Validate(dest, security.PolicyNormal)
	if err != nil {
		return err
	}
	if err := t.f.Sync(); err != nil {
		return wrapIO("sync", t.path, err)
	}
	if err := t.f.Chmod(perm); err != nil {
		return wrapIO("chmod", t.path, err)
	}
	if err := t.f.Close(); err != nil {
		return wrapIO("close", t.path, err)
	}
	if err := os.Rename(t.path, validated); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return wrapIO("rename", validated, err)
		}
		if err := renameAcrossDevices(t.path, validated, perm); err != nil {
			return err
		}
	}
	t.state = StateReleased
	t.store.unregister(t.path)
	return nil
}

// Release closes and deletes the temp. Safe to call on every exit
// path; repeat calls are no-ops.
func (t *Temp) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateReleased {
		return nil
	}
	t.state = StateReleased
	t.f.Close()
	t.store.unregister(t.path)
	if err := os.Remove(t.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapIO("remove", t.path, err)
	}
	return nil
}

// renameAcrossDevices copies through a sibling temp in the
// destination directory when the store and destination live on
// different filesystems. The final rename stays within one directory,
// preserving atomicity.
func renameAcrossDevices(src, dest string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return wrapIO("open", src, err)
	}
	defer os.Remove(src)
	defer in.Close()

	sibling, err := os.CreateTemp(filepath.Dir(dest), ".compresskit-promote-*")
	if err != nil {
		return wrapIO("create", filepath.Dir(dest), err)
	}
	defer os.Remove(sibling.Name())
	if _, err := io.Copy(sibling, in); err != nil {
		sibling.Close()
		return wrapIO("write", sibling.Name(), err)
	}
	if err := sibling.Sync(); err != nil {
		sibling.Close()
		return wrapIO("sync", sibling.Name(), err)
	}
	if err := sibling.Chmod(perm); err != nil {
		sibling.Close()
		return wrapIO("chmod", sibling.Name(), err)
	}
	if err := sibling.Close(); err != nil {
		return wrapIO("close", sibling.Name(), err)
	}
	if err := os.Rename(sibling.Name(), dest); err != nil {
		return wrapIO("rename", dest, err)
	}
	return nil
}
