package fsext

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TempSuffix is appended to the target name while a write is in flight.
const TempSuffix = ".tmp"

// ErrNoFileName is returned when the target path has no file name component.
var ErrNoFileName = errors.New("path has no file name")

// TempPath returns the sibling path used while writing path.
// It lives in the same directory so the final rename stays on one filesystem.
func TempPath(path string) (string, error) {
	name := filepath.Base(path)
	if path == "" || name == "." || name == string(filepath.Separator) || os.IsPathSeparator(path[len(path)-1]) {
		return "", fmt.Errorf("%q: %w", path, ErrNoFileName)
	}
	return filepath.Join(filepath.Dir(path), name+TempSuffix), nil
}

// WriteAtomic writes data to path so that readers see either the previous
// content or the complete new content, never a partial file.
//
// The payload goes to TempPath(path) first and is then renamed over path.
// On failure the target is untouched; a stray temp file may be left behind.
func WriteAtomic(path string, data []byte) error {
	tempPath, err := TempPath(path)
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file %s: %w", tempPath, err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tempPath, path, err)
	}

	return nil
}
