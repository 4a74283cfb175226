package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// CommandRunner abstracts shell-out operations for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	RunWithOutput(ctx context.Context, name string, args ...string) ([]byte, error)
	RunCombined(ctx context.Context, name string, args ...string) ([]byte, error)
	RunAttached(ctx context.Context, dir, name string, args ...string) error
	CommandExists(name string) bool
}

// OSCommandRunner executes real system commands.
type OSCommandRunner struct{}

// NewOSCommandRunner returns a CommandRunner that executes real system commands.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes a system command and returns any error.
func (r *OSCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	zap.L().Debug("exec", zap.String("cmd", name), zap.Strings("args", args))
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// RunWithOutput executes a system command and returns its stdout output.
func (r *OSCommandRunner) RunWithOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	zap.L().Debug("exec", zap.String("cmd", name), zap.Strings("args", args))
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s %v: %w: %s", name, args, err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%s %v: %w", name, args, err)
	}
	return out, nil
}

// RunCombined executes a system command and returns stdout and stderr
// together. `java -version` prints to stderr, so probes need both.
func (r *OSCommandRunner) RunCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	zap.L().Debug("exec", zap.String("cmd", name), zap.Strings("args", args))
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %v: %w", name, args, err)
	}
	return out, nil
}

// RunAttached executes a command in dir with its output streamed to the
// operator's terminal. Used for long-running builds.
func (r *OSCommandRunner) RunAttached(ctx context.Context, dir, name string, args ...string) error {
	zap.L().Debug("exec", zap.String("cmd", name), zap.Strings("args", args), zap.String("dir", dir))
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", name, args, err)
	}
	return nil
}

// CommandExists checks whether a command is available on the system PATH.
func (r *OSCommandRunner) CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// MockRunner records commands for testing without executing them.
type MockRunner struct {
	Commands  []MockCommand
	OutputMap map[string][]byte
	ErrorMap  map[string]error
	ExistsMap map[string]bool

	// Hooks run side effects for a command key (e.g. creating the file a
	// build would have produced). A returned error is the command's error.
	Hooks map[string]func(MockCommand) error
}

// MockCommand records a single command invocation.
type MockCommand struct {
	Name     string
	Args     []string
	Dir      string
	Attached bool
}

// NewMockRunner creates a MockRunner with empty state.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		OutputMap: make(map[string][]byte),
		ErrorMap:  make(map[string]error),
		ExistsMap: make(map[string]bool),
		Hooks:     make(map[string]func(MockCommand) error),
	}
}

// Key returns the map key used for OutputMap / ErrorMap lookups.
func (m *MockRunner) Key(name string, args ...string) string {
	return fmt.Sprintf("%s %v", name, args)
}

// Ran reports whether a command with the given key was recorded.
func (m *MockRunner) Ran(name string, args ...string) bool {
	key := m.Key(name, args...)
	for _, c := range m.Commands {
		if m.Key(c.Name, c.Args...) == key {
			return true
		}
	}
	return false
}

// RanName reports whether any command with the given name was recorded.
func (m *MockRunner) RanName(name string) bool {
	for _, c := range m.Commands {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (m *MockRunner) record(c MockCommand) error {
	m.Commands = append(m.Commands, c)
	key := m.Key(c.Name, c.Args...)
	if hook, ok := m.Hooks[key]; ok {
		if err := hook(c); err != nil {
			return err
		}
	}
	if err, ok := m.ErrorMap[key]; ok {
		return err
	}
	return nil
}

// Run records the command and returns any preconfigured error.
func (m *MockRunner) Run(_ context.Context, name string, args ...string) error {
	return m.record(MockCommand{Name: name, Args: args})
}

// RunWithOutput records the command and returns preconfigured output or error.
func (m *MockRunner) RunWithOutput(_ context.Context, name string, args ...string) ([]byte, error) {
	if err := m.record(MockCommand{Name: name, Args: args}); err != nil {
		return nil, err
	}
	return m.OutputMap[m.Key(name, args...)], nil
}

// RunCombined behaves like RunWithOutput.
func (m *MockRunner) RunCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.RunWithOutput(ctx, name, args...)
}

// RunAttached records the command with its working directory.
func (m *MockRunner) RunAttached(_ context.Context, dir, name string, args ...string) error {
	return m.record(MockCommand{Name: name, Args: args, Dir: dir, Attached: true})
}

// CommandExists returns the preconfigured existence value for the given command.
func (m *MockRunner) CommandExists(name string) bool {
	if exists, ok := m.ExistsMap[name]; ok {
		return exists
	}
	return false
}
