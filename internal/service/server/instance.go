package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// commNameLength is how many bytes of an executable name Linux keeps in
// /proc/<pid>/stat, which is where process listings read it from.
const commNameLength = 15

// ErrAlreadyRunning is returned when another server process holds the host.
var ErrAlreadyRunning = errors.New("another smokewatch-server instance is already running")

// ensureSingleInstance fails when another process runs the same executable.
// Two servers would each keep their own in-memory device state.
func ensureSingleInstance() error {
	processes, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	if pid, found := findOtherInstance(processes, os.Getpid(), filepath.Base(self)); found {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}

	return nil
}

// findOtherInstance returns the pid of a process other than selfPID running executable.
func findOtherInstance(processes []ps.Process, selfPID int, executable string) (int, bool) {
	for _, process := range processes {
		if process.Pid() == selfPID {
			continue
		}

		if sameExecutable(process.Executable(), executable) {
			return process.Pid(), true
		}
	}

	return 0, false
}

// sameExecutable compares executable names, ignoring case and the .exe suffix on Windows.
// Elsewhere a listed name cut at commNameLength matches the full name it starts.
func sameExecutable(a, b string) bool {
	if runtime.GOOS != "windows" {
		return a == b || truncatedMatch(a, b) || truncatedMatch(b, a)
	}

	trim := func(s string) string {
		return strings.TrimSuffix(strings.ToLower(s), ".exe")
	}

	return trim(a) == trim(b)
}

// truncatedMatch reports whether short is full cut at commNameLength.
func truncatedMatch(short, full string) bool {
	return len(short) == commNameLength && len(full) > commNameLength && strings.HasPrefix(full, short)
}
