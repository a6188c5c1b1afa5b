// Package security guards the filesystem boundaries of the pipeline: archive
// members must stay inside the extraction directory and names taken from URLs
// must be safe to use as file names.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its directory.
var ErrPathEscape = errors.New("path escapes directory")

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir.
// Symlinks are resolved for the longest existing prefix of filePath, so a
// link inside safeDir that points elsewhere is rejected too.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	target, err := canonical(filePath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", filePath, err)
	}
	root, err := canonical(safeDir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", safeDir, err)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is not under %s", ErrPathEscape, filePath, safeDir)
	}
	return nil
}

// canonical returns the absolute form of path with symlinks resolved in its
// deepest existing ancestor. The non-existent tail is appended unchanged.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	existing, tail := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(resolved, tail), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		tail = filepath.Join(filepath.Base(existing), tail)
		existing = parent
	}
}

// SafeJoin joins an untrusted relative name (an archive member, say) onto dir
// and validates that the result stays inside dir.
func SafeJoin(dir, name string) (string, error) {
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty member name", ErrPathEscape)
	case filepath.IsAbs(name), strings.HasPrefix(name, "/"):
		return "", fmt.Errorf("%w: absolute member name %q", ErrPathEscape, name)
	}
	target := filepath.Join(dir, filepath.FromSlash(name))
	if err := ValidatePathWithinDirectory(target, dir); err != nil {
		return "", err
	}
	return target, nil
}

// SanitizeFilename makes a safe filename from an arbitrary string such as the
// last segment of a download URL. Characters outside [A-Za-z0-9._-] become
// underscores, runs of underscores collapse, leading/trailing dots and
// underscores are trimmed and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	const maxLen = 128
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
