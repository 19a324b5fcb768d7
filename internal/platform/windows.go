package platform

import (
	"os"
	"path/filepath"
)

// getWindowsInfo returns platform-specific information for Windows
func getWindowsInfo(homeDir, username string) *Info {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = filepath.Join(homeDir, "AppData", "Roaming")
	}
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		localAppData = filepath.Join(homeDir, "AppData", "Local")
	}

	return &Info{
		OS:           Windows,
		HomeDir:      homeDir,
		Username:     username,
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
		ConfigDir:    filepath.Join(appData, "dlsort"),
		DataDir:      filepath.Join(localAppData, "dlsort"),
		ProtectedPaths: []string{
			`C:\`,
			`C:\Windows`,
			`C:\Program Files`,
			`C:\Program Files (x86)`,
		},
	}
}
