package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestRunCommandLine(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{name: "No command", args: nil, wantCode: 2, wantOut: "usage:"},
		{name: "Unknown command", args: []string{"reload"}, wantCode: 2, wantOut: `unknown command "reload"`},
		{name: "Too many arguments", args: []string{"start", "now"}, wantCode: 2, wantOut: "exactly one command"},
		{name: "Unknown flag", args: []string{"-bogus", "start"}, wantCode: 2},
		{name: "Help", args: []string{"-h"}, wantCode: 0, wantOut: "usage:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if code := run(tt.args, &out); code != tt.wantCode {
				t.Errorf("run(%q) = %d, want %d", tt.args, code, tt.wantCode)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output %q should contain %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestRunStop(t *testing.T) {
	t.Run("Not running is accepted", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "powermon.pid")

		var out bytes.Buffer
		if code := run([]string{"-pid-file", pidFile, "stop"}, &out); code != 0 {
			t.Errorf("run(stop) = %d, want 0 (output %q)", code, out.String())
		}
		if !strings.Contains(out.String(), "not running") {
			t.Errorf("output %q should say the daemon is not running", out.String())
		}
	})

	t.Run("Invalid configuration fails start", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "powermon.pid")

		var out bytes.Buffer
		code := run([]string{"-pid-file", pidFile, "-mail-host", "", "start"}, &out)
		if code != 1 {
			t.Errorf("run(start) = %d, want 1", code)
		}
		if !strings.Contains(out.String(), "mail host") {
			t.Errorf("output %q should explain the problem", out.String())
		}
		if _, err := os.Stat(pidFile); !errors.Is(err, os.ErrNotExist) {
			t.Error("no PID file should be written for an invalid configuration")
		}
	})
}

func TestPIDFile(t *testing.T) {
	t.Run("Write and read back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "powermon.pid")
		if err := writePIDFile(path); err != nil {
			t.Fatalf("unexpected error from writePIDFile(): %v", err)
		}
		pid, err := readPIDFile(path)
		if err != nil || pid != os.Getpid() {
			t.Errorf("readPIDFile() = %d, %v; want %d", pid, err, os.Getpid())
		}
		if err := removePIDFile(path); err != nil {
			t.Errorf("unexpected error from removePIDFile(): %v", err)
		}
		if err := removePIDFile(path); err != nil {
			t.Errorf("removing a missing PID file should succeed, got: %v", err)
		}
	})

	t.Run("Live process blocks a second start", func(t *testing.T) {
		cmd := startSleeper(t)
		path := filepath.Join(t.TempDir(), "powermon.pid")
		os.WriteFile(path, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644)

		if err := writePIDFile(path); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("expected ErrAlreadyRunning, got: %v", err)
		}
	})

	t.Run("Malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "powermon.pid")
		os.WriteFile(path, []byte("garbage"), 0o644)
		if _, err := readPIDFile(path); err == nil {
			t.Error("expected an error")
		}
	})
}

// startSleeper runs a long sleep in a child process and reaps it on exit.
func startSleeper(t *testing.T) *exec.Cmd {
	t.Helper()
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep binary not available")
	}
	cmd := exec.Command(path, "60")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start child: %v", err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})
	return cmd
}

func TestStopDaemon(t *testing.T) {
	t.Run("Signals and waits for the process", func(t *testing.T) {
		path, err := exec.LookPath("sleep")
		if err != nil {
			t.Skip("sleep binary not available")
		}
		cmd := exec.Command(path, "60")
		if err := cmd.Start(); err != nil {
			t.Fatalf("failed to start child: %v", err)
		}
		// Reap the child so it does not linger as a zombie.
		go cmd.Wait()

		pidFile := filepath.Join(t.TempDir(), "powermon.pid")
		os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644)

		if err := stopDaemon(pidFile, 5*time.Second); err != nil {
			t.Fatalf("unexpected error from stopDaemon(): %v", err)
		}
		if _, err := os.Stat(pidFile); !errors.Is(err, os.ErrNotExist) {
			t.Error("PID file should be removed")
		}
	})

	t.Run("Missing PID file", func(t *testing.T) {
		err := stopDaemon(filepath.Join(t.TempDir(), "none.pid"), time.Second)
		if !errors.Is(err, ErrNotRunning) {
			t.Errorf("expected ErrNotRunning, got: %v", err)
		}
	})
}
