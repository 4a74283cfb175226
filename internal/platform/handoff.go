package platform

import (
	"fmt"
	"os/exec"
)

// Handoff transfers control of the invocation to another program. It is
// the one place where this tool gives up its own process: Exec either
// replaces the current process image (unix) or runs the program as a
// child and exits with its status (elsewhere). A successful Exec does
// not return.
type Handoff interface {
	Exec(argv []string, dir string) error
}

// OSHandoff is the real Handoff.
type OSHandoff struct {
	// Env is the environment for the new program; nil keeps the current one.
	Env []string
}

// NewOSHandoff returns a Handoff that keeps the current environment.
func NewOSHandoff() *OSHandoff {
	return &OSHandoff{}
}

func resolveArgv(argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("handoff: empty command")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return "", fmt.Errorf("handoff: %w", err)
	}
	return path, nil
}

// MockHandoff records the handoff instead of performing it.
type MockHandoff struct {
	Calls [][]string
	Dirs  []string
	Err   error
}

// Exec records argv and dir and returns the preconfigured error.
func (m *MockHandoff) Exec(argv []string, dir string) error {
	m.Calls = append(m.Calls, append([]string(nil), argv...))
	m.Dirs = append(m.Dirs, dir)
	return m.Err
}
