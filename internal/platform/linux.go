package platform

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// getLinuxInfo returns platform-specific information for Linux
func getLinuxInfo(homeDir, username string) *Info {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(homeDir, ".config")
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(homeDir, ".local", "share")
	}

	downloads := xdgUserDir(filepath.Join(configHome, "user-dirs.dirs"), "XDG_DOWNLOAD_DIR", homeDir)
	if downloads == "" {
		downloads = filepath.Join(homeDir, "Downloads")
	}

	return &Info{
		OS:           Linux,
		HomeDir:      homeDir,
		Username:     username,
		DownloadsDir: downloads,
		ConfigDir:    filepath.Join(configHome, "dlsort"),
		DataDir:      filepath.Join(dataHome, "dlsort"),
		ProtectedPaths: []string{
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/home",
			"/lib",
			"/lib64",
			"/opt",
			"/proc",
			"/run",
			"/sbin",
			"/srv",
			"/sys",
			"/usr",
			"/var/lib",
			"/var/db",
		},
	}
}

// xdgUserDir reads one entry of the xdg-user-dirs file, e.g.
// XDG_DOWNLOAD_DIR="$HOME/Downloads". Returns "" when absent.
func xdgUserDir(path, key, homeDir string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(name) != key {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		value = strings.Replace(value, "$HOME", homeDir, 1)
		if !filepath.IsAbs(value) {
			return ""
		}
		return filepath.Clean(value)
	}
	return ""
}
