// Package container drives a container engine CLI for image builds.
// Containers are only ever created to read files out of an image; this
// package never starts one.
package container

import (
	"context"
	"fmt"
	"strings"

	"github.com/dominicfeliton/minecraft-server-script/internal/platform"
)

// DefaultRuntime is the engine binary used when none is configured.
const DefaultRuntime = "docker"

// Engine wraps a docker-compatible CLI.
type Engine struct {
	runner  platform.CommandRunner
	runtime string
}

// NewEngine creates an Engine for the given runtime binary.
func NewEngine(runner platform.CommandRunner, runtime string) *Engine {
	if runtime == "" {
		runtime = DefaultRuntime
	}
	return &Engine{runner: runner, runtime: runtime}
}

// Runtime returns the engine binary name.
func (e *Engine) Runtime() string {
	return e.runtime
}

// Usable checks the engine binary is installed and that the daemon
// accepts requests from the current user.
func (e *Engine) Usable(ctx context.Context) error {
	if !e.runner.CommandExists(e.runtime) {
		return &platform.MissingToolError{Tool: e.runtime, Hint: "install it and make sure it is on PATH"}
	}
	if _, err := e.runner.RunWithOutput(ctx, e.runtime, "info"); err != nil {
		return fmt.Errorf("%s is installed but not usable by the current user (is the daemon running, are you in the %s group?): %w",
			e.runtime, e.runtime, err)
	}
	return nil
}

// Build builds contextDir into an image tagged tag. Build output is
// streamed to the terminal.
func (e *Engine) Build(ctx context.Context, tag, contextDir string) error {
	return e.runner.RunAttached(ctx, contextDir, e.runtime, "build", "-t", tag, contextDir)
}

// Create instantiates a stopped container from image and returns its ID.
func (e *Engine) Create(ctx context.Context, image, name string) (string, error) {
	args := []string{"create"}
	if name != "" {
		args = append(args, "--name", name)
	}
	args = append(args, image)
	out, err := e.runner.RunWithOutput(ctx, e.runtime, args...)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("%s create %s returned no container id", e.runtime, image)
	}
	return id, nil
}

// CopyFrom copies src out of a container's filesystem into dst.
func (e *Engine) CopyFrom(ctx context.Context, id, src, dst string) error {
	return e.runner.Run(ctx, e.runtime, "cp", id+":"+src, dst)
}

// Remove force-removes a container.
func (e *Engine) Remove(ctx context.Context, id string) error {
	return e.runner.Run(ctx, e.runtime, "rm", "-f", id)
}

// Exists checks if a container with the given name exists (running or stopped).
func (e *Engine) Exists(ctx context.Context, name string) bool {
	return e.runner.Run(ctx, e.runtime, "inspect", "--type", "container", name) == nil
}
