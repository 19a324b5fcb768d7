package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestXDGUserDir(t *testing.T) {
	home := "/home/alex"
	dir := t.TempDir()
	path := filepath.Join(dir, "user-dirs.dirs")

	content := `# This file is written by xdg-user-dirs-update
XDG_DESKTOP_DIR="$HOME/Desktop"
XDG_DOWNLOAD_DIR="$HOME/Incoming"
XDG_MUSIC_DIR="relative/Music"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"XDG_DOWNLOAD_DIR", "/home/alex/Incoming"},
		{"XDG_DESKTOP_DIR", "/home/alex/Desktop"},
		{"XDG_MUSIC_DIR", ""},
		{"XDG_VIDEOS_DIR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := xdgUserDir(path, tt.key, home); got != tt.want {
				t.Errorf("xdgUserDir(%s) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if got := xdgUserDir(filepath.Join(dir, "missing"), "XDG_DOWNLOAD_DIR", home); got != "" {
		t.Errorf("missing file: got %q, want empty", got)
	}
}

func TestLinuxInfoHonorsXDG(t *testing.T) {
	home := t.TempDir()
	configHome := filepath.Join(home, "cfg")
	dataHome := filepath.Join(home, "data")
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_DATA_HOME", dataHome)

	info := getLinuxInfo(home, "alex")

	if info.ConfigDir != filepath.Join(configHome, "dlsort") {
		t.Errorf("ConfigDir = %s", info.ConfigDir)
	}
	if info.DataDir != filepath.Join(dataHome, "dlsort") {
		t.Errorf("DataDir = %s", info.DataDir)
	}
	if info.DownloadsDir != filepath.Join(home, "Downloads") {
		t.Errorf("DownloadsDir = %s, want ~/Downloads without user-dirs.dirs", info.DownloadsDir)
	}
}

func TestIsProtectedPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/etc", true},
		{"/usr/", true},
		{"/usr/local/share/music", false},
		{"/home/alex/Music", false},
	}

	for _, tt := range tests {
		if got := IsProtectedPath(tt.path); got != tt.want {
			t.Errorf("IsProtectedPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
