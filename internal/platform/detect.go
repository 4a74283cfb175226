package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// MissingToolError reports a required external tool that is not on PATH.
type MissingToolError struct {
	Tool string
	Hint string
}

func (e *MissingToolError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("required tool %q not found (%s)", e.Tool, e.Hint)
	}
	return fmt.Sprintf("required tool %q not found", e.Tool)
}

// RequireTools returns a MissingToolError for the first tool not on PATH.
func RequireTools(runner CommandRunner, tools ...string) error {
	for _, tool := range tools {
		if !runner.CommandExists(tool) {
			return &MissingToolError{Tool: tool}
		}
	}
	return nil
}

// IsWSL reports whether we are running under Windows Subsystem for Linux.
func IsWSL(ctx context.Context, runner CommandRunner) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	out, err := runner.RunWithOutput(ctx, "cat", "/proc/version")
	if err != nil {
		return false
	}
	return containsCI(string(out), "microsoft")
}

// LocalAddress returns the first address reported by `hostname -I`,
// which is what a Windows host uses to reach a WSL guest.
func LocalAddress(ctx context.Context, runner CommandRunner) string {
	out, err := runner.RunWithOutput(ctx, "hostname", "-I")
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
