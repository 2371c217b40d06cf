// Package pid keeps two jobs from driving the same appliance at once.
package pid

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/clistat/internal/errors"
	"github.com/spf13/afero"
)

const filePrefix = "clistat-"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Lock struct {
	fs   afero.Fs
	path string
}

// Path returns the pid file used for target inside dir.
func Path(dir, target string) string {
	name := unsafeChars.ReplaceAllString(target, "_")
	if name == "" {
		name = "default"
	}
	return filepath.Join(dir, filePrefix+name+".pid")
}

// Acquire writes the current process ID to the target's pid file. It fails
// with ErrAlreadyRunning while the recorded process is alive; a stale or
// unreadable file is replaced.
func Acquire(fs afero.Fs, dir, target string) (*Lock, error) {
	errFactory := errors.New()
	path := Path(dir, target)

	if data, err := afero.ReadFile(fs, path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && alive(pid) {
			return nil, errFactory.WithData(errors.ErrAlreadyRunning, struct {
				Target string
				PID    int
			}{target, pid})
		}
	} else if !os.IsNotExist(err) {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}
	if err := afero.WriteFile(fs, path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	return &Lock{fs: fs, path: path}, nil
}

// Release removes the pid file.
func (l *Lock) Release() error {
	if err := l.fs.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
