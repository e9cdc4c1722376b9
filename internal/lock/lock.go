// Package lock guards a batch run with a pid file so two runs never write
// the same catalog at once.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
)

// File is a held lock.
type File struct {
	path string
}

// Path returns the lock file location.
func (f *File) Path() string {
	return f.path
}

// Acquire creates the lock file at path holding the current pid. It fails
// with errors.ErrAlreadyRunning while a live process holds it; a lock left
// by a dead process is removed and taken over.
func Acquire(path string) (*File, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), constants.DefaultLockFile)
	}
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.FilePermissions)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, errors.WrapIO("write", path, firstErr(werr, cerr))
			}
			return &File{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.WrapIO("create", path, err)
		}

		pid, alive := holder(path)
		if alive {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", errors.ErrAlreadyRunning, pid, path)
		}
		logging.Warn().Int("pid", pid).Str("path", path).Msg("Removing stale lock file")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.WrapIO("remove", path, err)
		}
	}
	return nil, fmt.Errorf("%w (lock %s)", errors.ErrAlreadyRunning, path)
}

// Release removes the lock file. Releasing twice is a no-op.
func (f *File) Release() error {
	if f == nil || f.path == "" {
		return nil
	}
	path := f.path
	f.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("remove", path, err)
	}
	return nil
}

// holder reads the pid in the lock file and reports whether that process
// still exists. An unreadable or empty file counts as stale.
func holder(path string) (int, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, alive(pid)
}

func alive(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
