// Package platform holds small host helpers: path expansion relative to the
// invoking user, sudo-aware user detection and a network reachability check.
package platform

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Current returns the runtime.GOOS value ("linux", "darwin", …).
func Current() string {
	return runtime.GOOS
}

// InvokingUser returns the login name of the user who started the tool.
// Under sudo that is SUDO_USER rather than root.
func InvokingUser() string {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

// HomeDir returns the home directory of InvokingUser, falling back to the
// process owner's home.
func HomeDir() (string, error) {
	if name := os.Getenv("SUDO_USER"); name != "" {
		if u, err := user.Lookup(name); err == nil && u.HomeDir != "" {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// ExpandPath expands a leading "~/" and environment variables in path.
func ExpandPath(path string) string {
	if path == "~" {
		if home, err := HomeDir(); err == nil {
			return home
		}
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := HomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// CheckConnectivity dials host ("name:port") over TCP and reports whether a
// connection could be opened within timeout.
func CheckConnectivity(ctx context.Context, host string, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return fmt.Errorf("dial %s: %w", host, err)
	}
	return conn.Close()
}
