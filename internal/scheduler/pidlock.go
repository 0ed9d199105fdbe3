package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// LockFileName is the single-instance lock file under DATA_DIR.
const LockFileName = "core.pid"

// ErrAlreadyRunning is returned when the lock file names a live
// process and force was not passed. The CLI maps it to exit code 3.
var ErrAlreadyRunning = errors.New("scheduler: another core instance is already running")

// PIDLock is a held single-instance lock. Release removes the file on
// clean shutdown; a crashed process leaves a stale file that the next
// startup detects as dead and reclaims.
type PIDLock struct {
	path string
	log  *zap.Logger
}

// AcquireLock claims the single-instance lock under dataDir. If the
// lock file names a live process it fails with ErrAlreadyRunning
// unless force is set; a dead owner's file is removed and reclaimed.
func AcquireLock(dataDir string, force bool, log *zap.Logger) (*PIDLock, error) {
	path := filepath.Join(dataDir, LockFileName)

	if raw, err := os.ReadFile(path); err == nil {
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(raw)))
		if parseErr == nil && processAlive(pid) {
			if !force {
				return nil, fmt.Errorf("%w: pid %d holds %s", ErrAlreadyRunning, pid, path)
			}
			log.Warn("force-taking lock from live process", zap.Int("pid", pid))
		} else {
			log.Info("removing stale lock file", zap.String("path", path))
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove lock file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read lock file %s: %w", path, err)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, err)
	}

	log.Info("acquired single-instance lock", zap.String("path", path), zap.Int("pid", pid))
	return &PIDLock{path: path, log: log}, nil
}

// Release removes the lock file. Safe to call once on shutdown.
func (l *PIDLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	l.log.Info("released single-instance lock", zap.String("path", l.path))
	return nil
}

// processAlive probes pid with signal 0, the portable liveness check
// on unix.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
