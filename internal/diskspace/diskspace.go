// Package diskspace checks free space on the filesystem that will receive a
// local export.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultMargin leaves 10% headroom over the encoded size.
const DefaultMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// Check returns an *InsufficientSpaceError when the filesystem holding
// targetPath cannot take requiredBytes times margin. targetPath need not
// exist; the nearest existing ancestor is measured. Filesystems that cannot
// be measured pass.
func Check(targetPath string, requiredBytes int64, margin float64) error {
	available, ok := Available(targetPath)
	if !ok {
		return nil
	}
	required := int64(float64(requiredBytes) * margin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// Available returns the bytes available to the current user on the
// filesystem holding path.
func Available(path string) (int64, bool) {
	dir := existingAncestor(filepath.Dir(path))
	if dir == "" {
		return 0, false
	}
	n, err := available(dir)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsInsufficientSpace reports whether err wraps an InsufficientSpaceError.
func IsInsufficientSpace(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}

func existingAncestor(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
