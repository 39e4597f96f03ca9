// Package securefile owns every temporary file the program creates
// and every atomic replacement it performs. Temp files are never more
// permissive than owner read-write, never adopted across processes,
// and never survive the operation that created them.
package securefile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/config"
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
)

// Store hands out temp files inside a per-process owner-only
// subdirectory and tracks them until release. All locations pass
// through the path guard before the filesystem is touched.
type Store struct {
	dir    string
	guard  *security.Guard
	logger *slog.Logger

	mu   sync.Mutex
	live map[string]*Temp
}

// NewStore validates root, sweeps leftovers from dead processes, and
// creates this process's private temp subdirectory.
func NewStore(root string, guard *security.Guard, logger *slog.Logger) (*Store, error) {
	if guard == nil {
		return nil, errors.New("securefile: nil guard")
	}
	if logger == nil {
		logger = slog.Default()
	}
	validated, err := guard.Validate(root, security.PolicyNormal)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(validated, config.PrivateDirPerm); err != nil {
		return nil, wrapIO("mkdir", validated, err)
	}
	sweepStale(validated, logger)

	dir, err := os.MkdirTemp(validated, fmt.Sprintf("compresskit-%d-", os.Getpid()))
	if err != nil {
		return nil, wrapIO("mkdir", validated, err)
	}
	return &Store{
		dir:    dir,
		guard:  guard,
		logger: logger,
		live:   make(map[string]*Temp),
	}, nil
}

// Dir returns the private temp subdirectory.
func (s *Store) Dir() string { return s.dir }

// CreateTemp creates a uniquely named file under the private
// subdirectory. The file carries owner read-write permissions from
// the moment it exists; failing to pin them down deletes the file and
// fails the call.
func (s *Store) CreateTemp(prefix string) (*Temp, error) {
	f, err := os.CreateTemp(s.dir, prefix+"*")
	if err != nil {
		return nil, wrapIO("create", s.dir, err)
	}
	if err := f.Chmod(config.TempFilePerm); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, wrapIO("chmod", f.Name(), err)
	}
	if _, err := s.guard.Validate(f.Name(), security.PolicyRelaxed); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	t := &Temp{path: f.Name(), f: f, store: s, state: StateCreated}
	s.mu.Lock()
	s.live[t.path] = t
	s.mu.Unlock()
	return t, nil
}

// AtomicWrite replaces dest with data. Concurrent readers observe the
// old content or the new content, never a prefix of either.
func (s *Store) AtomicWrite(dest string, data []byte, perm fs.FileMode) error {
	t, err := s.CreateTemp("atomic-")
	if err != nil {
		return err
	}
	defer t.Release()
	if _, err := t.Write(data); err != nil {
		return err
	}
	return t.Promote(dest, perm)
}

// ReleaseAll releases every live temp. Called on the ordinary exit
// path and from the signal handler; both may run, release is
// idempotent per resource.
func (s *Store) ReleaseAll() {
	s.mu.Lock()
	temps := make([]*Temp, 0, len(s.live))
	for _, t := range s.live {
		temps = append(temps, t)
	}
	s.mu.Unlock()
	for _, t := range temps {
		if err := t.Release(); err != nil {
			s.logger.Error("temp release failed", "path", t.path, "error", err)
		}
	}
}

// Close releases every temp and removes the private subdirectory.
func (s *Store) Close() {
	s.ReleaseAll()
	if err := os.Remove(s.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("temp directory not removed", "dir", s.dir, "error", err)
	}
}

func (s *Store) unregister(path string) {
	s.mu.Lock()
	delete(s.live, path)
	s.mu.Unlock()
}

// sweepStale removes temp subdirectories left by compresskit
// processes that no longer exist. Directories of live pids are never
// touched.
func sweepStale(root string, logger *slog.Logger) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, ok := staleOwner(e.Name())
		if !ok || pid == os.Getpid() || processAlive(pid) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("stale temp dir not removed", "dir", dir, "error", err)
			continue
		}
		logger.Debug("removed stale temp dir", "dir", dir, "pid", pid)
	}
}

func staleOwner(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "compresskit-")
	if !ok {
		return 0, false
	}
	pidStr, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
