package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath validates that a file path is safe and doesn't contain directory traversal attempts
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path contains NUL byte")
	}

	if hasParentSegment(filepath.Clean(path)) {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}

// ResolveWithinBase returns the absolute form of path, which may be given
// relative to baseDir or absolute, provided it stays inside baseDir.
func ResolveWithinBase(path, baseDir string) (string, error) {
	if err := ValidateFilePath(path); err != nil {
		return "", err
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, full)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(base, full)
	if err != nil || rel == "." || hasParentSegment(rel) {
		return "", fmt.Errorf("path escapes base directory: %s", path)
	}
	return full, nil
}

func hasParentSegment(cleanPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
