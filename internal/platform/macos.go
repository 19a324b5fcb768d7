package platform

import "path/filepath"

// getMacOSInfo returns platform-specific information for macOS
func getMacOSInfo(homeDir, username string) *Info {
	return &Info{
		OS:           MacOS,
		HomeDir:      homeDir,
		Username:     username,
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
		ConfigDir:    filepath.Join(homeDir, ".config", "dlsort"),
		DataDir:      filepath.Join(homeDir, "Library", "Application Support", "dlsort"),
		ProtectedPaths: []string{
			"/",
			"/System",
			"/Applications",
			"/Library",
			"/bin",
			"/sbin",
			"/usr",
			"/etc",
			"/private",
			"/Volumes",
		},
	}
}
