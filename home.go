package nestbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// Home returns the nestbox home directory.
// It defaults to ~/.nestbox but can be overridden with the NESTBOX_HOME
// environment variable.
func Home() string {
	if v := os.Getenv("NESTBOX_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nestbox")
}

// ConfigPath returns the default host config path (~/.nestbox/nestbox.yaml).
func ConfigPath() string {
	return filepath.Join(Home(), "nestbox.yaml")
}

// LogDir returns the directory holding audit logs.
func LogDir() string {
	return filepath.Join(Home(), "logs")
}

// EnsureHome creates the nestbox home and log directories if they don't exist.
func EnsureHome() error {
	return os.MkdirAll(LogDir(), 0o755)
}

// RuntimeDir returns a short-lived directory suitable for the hub socket.
// Sockets must live under a short base path to stay within the AF_UNIX
// path limit, so this prefers $XDG_RUNTIME_DIR and falls back to /tmp.
func RuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, "nestbox")
	}
	return fmt.Sprintf("/tmp/nestbox-%d", os.Getuid())
}

// SocketPath returns the hub socket path for a session named name.
func SocketPath(name string) string {
	return filepath.Join(RuntimeDir(), name+".sock")
}

// unixSocketPathLimit is the AF_UNIX sun_path limit: 108 on Linux,
// 104 on macOS. The lower bound keeps us portable.
const unixSocketPathLimit = 104

// ValidateSocketPath fails when path would exceed the AF_UNIX length
// limit. Callers must check this before binding so the failure is a
// clear error rather than a cryptic bind failure.
func ValidateSocketPath(path string) error {
	if n := len(path); n >= unixSocketPathLimit {
		return fmt.Errorf("socket path too long (%d >= %d): %s", n, unixSocketPathLimit, path)
	}
	return nil
}
