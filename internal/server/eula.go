package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EULAFile is the file the server reads its EULA acceptance from.
const EULAFile = "eula.txt"

// EnsureEULA sets eula=true in serverDir/eula.txt, creating the file when
// missing and rewriting a false line in place. Other lines are kept. It
// reports whether the file changed.
func EnsureEULA(serverDir string) (bool, error) {
	path := filepath.Join(serverDir, EULAFile)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("reading %s: %w", EULAFile, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(data) == 0 {
		lines = nil
	}
	found := false
	for i, line := range lines {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || strings.TrimSpace(key) != "eula" {
			continue
		}
		found = true
		if strings.EqualFold(strings.TrimSpace(value), "true") {
			return false, nil
		}
		lines[i] = "eula=true"
		break
	}
	if !found {
		lines = append(lines, "eula=true")
	}

	if err := os.MkdirAll(serverDir, 0o755); err != nil {
		return false, fmt.Errorf("creating server directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", EULAFile, err)
	}
	return true, nil
}

// EULAAccepted reports whether serverDir/eula.txt contains eula=true.
func EULAAccepted(serverDir string) bool {
	data, err := os.ReadFile(filepath.Join(serverDir, EULAFile))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok && strings.TrimSpace(key) == "eula" {
			return strings.EqualFold(strings.TrimSpace(value), "true")
		}
	}
	return false
}
