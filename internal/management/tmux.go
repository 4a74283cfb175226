package management

import (
	"context"

	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
)

// TmuxManager wraps tmux session operations.
type TmuxManager struct {
	runner  platform.CommandRunner
	session string
}

// NewTmuxManager creates a TmuxManager for the named session.
func NewTmuxManager(runner platform.CommandRunner, session string) *TmuxManager {
	return &TmuxManager{runner: runner, session: session}
}

// target pins the lookup to an exact session name; without the '='
// prefix tmux falls back to prefix matching.
func (t *TmuxManager) target() string {
	return "=" + t.session
}

// Exists checks if the named tmux session exists.
func (t *TmuxManager) Exists(ctx context.Context) bool {
	return t.runner.Run(ctx, "tmux", "has-session", "-t", t.target()) == nil
}

// Create launches argv in a new detached tmux session.
func (t *TmuxManager) Create(ctx context.Context, dir string, argv []string) error {
	args := []string{"new-session", "-d", "-s", t.session}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	args = append(args, argv...)
	return t.runner.Run(ctx, "tmux", args...)
}

// SendKeys sends a line of input to the session.
func (t *TmuxManager) SendKeys(ctx context.Context, text string) error {
	return t.runner.Run(ctx, "tmux", "send-keys", "-t", t.target(), text, "Enter")
}

// Kill destroys the session.
func (t *TmuxManager) Kill(ctx context.Context) error {
	return t.runner.Run(ctx, "tmux", "kill-session", "-t", t.target())
}

// Name returns the session name.
func (t *TmuxManager) Name() string {
	return t.session
}
