// Package lock keeps two mirror processes from writing the same output.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
)

// ErrAlreadyRunning indicates another live process holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// PIDFile is a held lock.
type PIDFile struct {
	path string
	pid  int
}

// Acquire creates path containing our PID. A file left behind by a process
// that is no longer alive is replaced.
func Acquire(path string) (*PIDFile, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
	}

	pid := os.Getpid()
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
			}
			return &PIDFile{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		holder, err := readPID(path)
		if err == nil && holder != pid && alive(holder) {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrAlreadyRunning, holder, path)
		}

		log.Warn().
			Str("component", "lock").
			Str("path", path).
			Int("stale_pid", holder).
			Msg("Replacing stale lock file")
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
}

// Release removes the lock file.
func (p *PIDFile) Release() error {
	if p == nil {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (p *PIDFile) Path() string {
	return p.path
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
