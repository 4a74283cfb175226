package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ReadVersionRecord returns the last deployed version stored at path.
// ok is false when no record exists or the record is empty.
func ReadVersionRecord(path string) (version string, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading version record: %w", err)
	}
	version = strings.TrimSpace(string(data))
	return version, version != "", nil
}

// WriteVersionRecord replaces the record at path with version.
func WriteVersionRecord(path, version string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(version+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing version record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing version record: %w", err)
	}
	return nil
}
