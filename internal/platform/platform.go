package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Windows Platform = "windows"
	Unknown Platform = "unknown"
)

// Info contains platform-specific information and paths
type Info struct {
	OS           Platform
	HomeDir      string
	Username     string
	DownloadsDir string
	ConfigDir    string
	DataDir      string
	// ProtectedPaths are never accepted as category destinations
	ProtectedPaths []string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information for the current user
func GetInfo() (*Info, error) {
	homeDir, username, err := currentUser()
	if err != nil {
		return nil, err
	}

	switch Detect() {
	case MacOS:
		return getMacOSInfo(homeDir, username), nil
	case Linux:
		return getLinuxInfo(homeDir, username), nil
	case Windows:
		return getWindowsInfo(homeDir, username), nil
	default:
		return nil, ErrUnsupportedPlatform
	}
}

// currentUser resolves the home directory, preferring $HOME so tests and
// sandboxed environments can redirect it.
func currentUser() (string, string, error) {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		name := os.Getenv("USER")
		if name == "" {
			name = os.Getenv("USERNAME")
		}
		return home, name, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", "", err
	}
	return u.HomeDir, u.Username, nil
}

// DefaultDownloadsDir returns the user's downloads directory, falling back to
// ~/Downloads when platform detection fails.
func DefaultDownloadsDir() string {
	info, err := GetInfo()
	if err == nil && info.DownloadsDir != "" {
		return info.DownloadsDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "Downloads"
	}
	return filepath.Join(home, "Downloads")
}

// IsProtectedPath checks if a path is a system root that must never receive files
func IsProtectedPath(path string) bool {
	protectedPaths := []string{
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
		"/System",         // macOS
		"/Applications",   // macOS
		"/Library/System", // macOS
	}

	clean := filepath.Clean(path)
	for _, protected := range protectedPaths {
		if clean == protected {
			return true
		}
	}

	return false
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
