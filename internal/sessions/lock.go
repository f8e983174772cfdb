package sessions

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Shell stickiness: each terminal, identified by its parent shell PID,
// attaches to a session through a lock file rather than DB state.
const lockPrefix = "asky_session_"

var lockDir = os.TempDir()

func lockFilePath() string {
	return filepath.Join(lockDir, fmt.Sprintf("%s%d", lockPrefix, os.Getppid()))
}

// ShellSessionID reads the current shell's attached session id, if any.
func ShellSessionID() (int64, bool) {
	data, err := os.ReadFile(lockFilePath())
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SetShellSession attaches the current shell to a session.
func SetShellSession(sessionID int64) error {
	path := lockFilePath()
	if err := os.WriteFile(path, []byte(strconv.FormatInt(sessionID, 10)), 0o644); err != nil {
		return fmt.Errorf("write session lock: %w", err)
	}
	slog.Info("session lock file created", "path", path)
	return nil
}

// ClearShellSession detaches the current shell from its session.
func ClearShellSession() {
	path := lockFilePath()
	if err := os.Remove(path); err == nil {
		slog.Info("session lock file removed", "path", path)
	}
}
