package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/socctl/internal/errors"
)

const pidFile = "socctl.pid"

// defaultPath places the pidfile in the system temp dir when no
// explicit path is configured.
func defaultPath(path string) string {
	if path != "" {
		return path
	}

	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to the pidfile. A pidfile whose
// recorded process is still alive means another daemon instance owns
// the machine; a stale one is overwritten.
func Write(path string) error {
	errFactory := errors.New()
	path = defaultPath(path)

	if _, err := os.Stat(path); err == nil {
		bytes, err := os.ReadFile(path)
		if err != nil {
			return errFactory.Wrap(errors.ErrPidfileWrite, err)
		}

		pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if process.Signal(syscall.Signal(0)) == nil {
					return errFactory.New(errors.ErrAlreadyRunning)
				}
			}
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrPidfileWrite, err)
	}

	return nil
}

// Remove removes the pidfile.
func Remove(path string) error {
	errFactory := errors.New()
	path = defaultPath(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
