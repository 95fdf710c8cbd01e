package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrNotRunning is returned by stopDaemon when no PID file exists.
	ErrNotRunning = errors.New("daemon not running")
	// ErrAlreadyRunning is returned by writePIDFile when the recorded
	// process is still alive.
	ErrAlreadyRunning = errors.New("daemon already running")
)

// writePIDFile records the current process id at path. A leftover file of
// a dead process is replaced.
func writePIDFile(path string) error {
	if pid, err := readPIDFile(path); err == nil && pid != os.Getpid() && processAlive(pid) {
		return fmt.Errorf("%w: pid %d in %s", ErrAlreadyRunning, pid, path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed PID file %s", path)
	}
	return pid, nil
}

func removePIDFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// processAlive reports whether pid exists, using the null signal.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// stopDaemon sends SIGTERM to the process recorded at path and waits up to
// timeout for it to exit. The PID file is removed once the process is gone.
func stopDaemon(path string, timeout time.Duration) error {
	pid, err := readPIDFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s does not exist", ErrNotRunning, path)
	}
	if err != nil {
		return err
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return removePIDFile(path)
		}
		return fmt.Errorf("signal process %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("process %d did not exit within %v", pid, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return removePIDFile(path)
}
