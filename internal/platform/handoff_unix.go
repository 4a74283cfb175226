//go:build unix

package platform

import (
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"
)

// Exec replaces the current process with argv, running in dir.
func (h *OSHandoff) Exec(argv []string, dir string) error {
	path, err := resolveArgv(argv)
	if err != nil {
		return err
	}
	if dir != "" {
		if err := os.Chdir(dir); err != nil {
			return fmt.Errorf("handoff: changing to %s: %w", dir, err)
		}
	}
	env := h.Env
	if env == nil {
		env = os.Environ()
	}
	zap.L().Debug("handoff", zap.String("path", path), zap.Strings("argv", argv), zap.String("dir", dir))
	_ = zap.L().Sync()
	if err := syscall.Exec(path, argv, env); err != nil {
		return fmt.Errorf("handoff: exec %s: %w", path, err)
	}
	return nil
}
