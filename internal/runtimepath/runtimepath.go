// Package runtimepath locates the per-user runtime directory that holds the
// control socket.
package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// SocketEnv overrides the IPC socket path, mainly for nested sessions.
const SocketEnv = "TESSERA_SOCKET"

const socketName = "tessera.sock"

// env abstracts the process environment for tests.
type env struct {
	getenv func(string) string
	uid    int
	runDir string // parent of the per-uid /run/user directory
	tmpDir string
}

func processEnv() env {
	return env{getenv: os.Getenv, uid: os.Getuid(), runDir: "/run/user", tmpDir: os.TempDir()}
}

// Dir returns the runtime directory, trying XDG_RUNTIME_DIR, then
// /run/user/<uid>, then a private directory under the temp dir.
func Dir() (string, error) { return processEnv().dir() }

// SocketPath returns the window manager IPC socket path.
func SocketPath() (string, error) { return processEnv().socketPath() }

func (e env) dir() (string, error) {
	if d := e.getenv("XDG_RUNTIME_DIR"); d != "" {
		return d, nil
	}
	run := filepath.Join(e.runDir, fmt.Sprint(e.uid))
	if info, err := os.Stat(run); err == nil && info.IsDir() {
		return run, nil
	}

	tmp := filepath.Join(e.tmpDir, fmt.Sprintf("tessera-runtime-%d", e.uid))
	if err := os.MkdirAll(tmp, 0o700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	if err := e.checkPrivate(tmp); err != nil {
		return "", err
	}
	return tmp, nil
}

// checkPrivate rejects a shared-temp directory another user could have
// planted or opened up.
func (e env) checkPrivate(dir string) error {
	info, err := os.Lstat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat runtime dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("runtime dir %s is not a directory", dir)
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok && int(st.Uid) != e.uid {
		return fmt.Errorf("runtime dir %s is owned by uid %d, not %d", dir, st.Uid, e.uid)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("runtime dir %s has mode %o, want 0700", dir, info.Mode().Perm())
	}
	return nil
}

func (e env) socketPath() (string, error) {
	if p := e.getenv(SocketEnv); p != "" {
		return p, nil
	}
	dir, err := e.dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, socketName), nil
}
