//go:build !unix

package platform

import (
	"errors"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Exec runs argv as a foreground child in dir and exits with its status,
// since process replacement is not available on this platform.
func (h *OSHandoff) Exec(argv []string, dir string) error {
	path, err := resolveArgv(argv)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, argv[1:]...)
	cmd.Dir = dir
	cmd.Env = h.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	zap.L().Debug("handoff", zap.String("path", path), zap.Strings("argv", argv), zap.String("dir", dir))
	err = cmd.Run()
	_ = zap.L().Sync()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
