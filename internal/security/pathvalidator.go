// Package security validates user-supplied destination directories and
// exclude patterns before the engine acts on them.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fenilsonani/dlsort/internal/platform"
)

// PathValidator handles path validation for category destinations
type PathValidator struct {
	// protectedPaths reject the path itself and its direct children
	protectedPaths []string
	// exactPaths reject only the path itself
	exactPaths []string
}

// NewPathValidator creates a PathValidator with the system directories plus
// the current platform's protected roots
func NewPathValidator() *PathValidator {
	pv := &PathValidator{
		protectedPaths: []string{
			// Unix system directories
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/sbin",
			"/sys",
			"/usr",
			"/var",
			// macOS system directories
			"/System",
			"/Applications",
			"/Library/System",
		},
	}

	if info, err := platform.GetInfo(); err == nil {
		for _, p := range info.ProtectedPaths {
			pv.exactPaths = append(pv.exactPaths, filepath.Clean(p))
		}
	}

	return pv
}

// ValidateDestination checks that path may receive sorted files and returns
// its cleaned form. This is the single check every destination change goes
// through.
func (pv *PathValidator) ValidateDestination(path string) (string, error) {
	if strings.ContainsAny(path, "\x00\n\r") {
		return "", fmt.Errorf("path contains invalid characters: %q", path)
	}

	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute: %s", path)
	}

	cleanPath := filepath.Clean(path)

	// Resolve symlinks so a link into /etc is judged by where it points
	resolvedPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		resolvedPath = cleanPath
	}

	for _, candidate := range []string{cleanPath, filepath.Clean(resolvedPath)} {
		if err := pv.checkProtectedPaths(candidate); err != nil {
			return "", err
		}
	}

	if info, err := os.Stat(cleanPath); err == nil && !info.IsDir() {
		return "", fmt.Errorf("destination is not a directory: %s", cleanPath)
	}

	return cleanPath, nil
}

// checkProtectedPaths validates that a path is not a protected system directory
func (pv *PathValidator) checkProtectedPaths(cleanPath string) error {
	for _, protected := range pv.exactPaths {
		if cleanPath == protected {
			return fmt.Errorf("refusing to use protected path: %s", cleanPath)
		}
	}

	for _, protected := range pv.protectedPaths {
		if cleanPath == protected {
			return fmt.Errorf("refusing to use protected path: %s", cleanPath)
		}

		// /usr/foo is refused, /usr/local/share/foo is not
		if strings.HasPrefix(cleanPath, protected+"/") {
			rel, _ := filepath.Rel(protected, cleanPath)
			if !strings.Contains(rel, "/") {
				return fmt.Errorf("refusing to use critical system path: %s", cleanPath)
			}
		}
	}

	return nil
}

// IsProtectedPath checks if a path is, or is inside, a protected system path
func (pv *PathValidator) IsProtectedPath(path string) bool {
	cleanPath := filepath.Clean(path)
	for _, protected := range pv.exactPaths {
		if cleanPath == protected {
			return true
		}
	}
	for _, protected := range pv.protectedPaths {
		if protected == "/" {
			if cleanPath == "/" {
				return true
			}
			continue
		}
		if cleanPath == protected || strings.HasPrefix(cleanPath, protected+"/") {
			return true
		}
	}
	return false
}

// AddProtectedPath adds a custom protected path
func (pv *PathValidator) AddProtectedPath(path string) {
	cleanPath := filepath.Clean(path)
	pv.protectedPaths = append(pv.protectedPaths, cleanPath)
}

// ValidateGlobPattern validates an exclude pattern. Patterns match bare file
// names, so path separators and traversal are rejected.
func ValidateGlobPattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("glob pattern is empty")
	}

	if strings.Contains(pattern, "..") {
		return fmt.Errorf("glob pattern contains directory traversal: %s", pattern)
	}

	if strings.ContainsAny(pattern, `/\`) {
		return fmt.Errorf("glob pattern must match a file name, not a path: %s", pattern)
	}

	// Try to match the pattern to ensure it's valid
	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}

	return nil
}

// MatchesAny reports whether name matches any pattern, ignoring case.
// Invalid patterns never match.
func MatchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if ok, err := filepath.Match(strings.ToLower(p), lower); err == nil && ok {
			return true
		}
	}
	return false
}
