// Package testutil builds throwaway downloads trees for tests. Everything
// lives under t.TempDir().
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"
)

// TestFixture is a temp root holding a Downloads directory to sort and a
// Sorted directory for category folders
type TestFixture struct {
	T       *testing.T
	RootDir string

	// Downloads is the source directory sessions sort
	Downloads string
	// Sorted holds the directories returned by DestinationDirs
	Sorted string
}

// NewFixture creates the fixture with empty Downloads and Sorted directories
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	root := t.TempDir()
	f := &TestFixture{
		T:         t,
		RootDir:   root,
		Downloads: filepath.Join(root, "Downloads"),
		Sorted:    filepath.Join(root, "Sorted"),
	}
	f.mkdir(f.Downloads)
	f.mkdir(f.Sorted)
	return f
}

func (f *TestFixture) mkdir(dir string) {
	f.T.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.T.Fatalf("mkdir %s: %v", dir, err)
	}
}

// Path joins relPath onto the fixture root
func (f *TestFixture) Path(relPath string) string {
	return filepath.Join(f.RootDir, relPath)
}

// SortedPath is where name lands in a category directory from DestinationDirs
func (f *TestFixture) SortedPath(category, name string) string {
	return filepath.Join(f.Sorted, category, name)
}

// ============================================================================
// Building the tree
// ============================================================================

// CreateFile writes content at relPath, creating parents, and returns the path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	path := f.Path(relPath)
	f.mkdir(filepath.Dir(path))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		f.T.Fatalf("write %s: %v", path, err)
	}
	return path
}

// CreateDownload writes one file straight into Downloads
func (f *TestFixture) CreateDownload(name string, content []byte) string {
	f.T.Helper()
	return f.CreateFile(filepath.Join("Downloads", name), content)
}

// CreateDownloads writes one file per name into Downloads, using the name as
// its content
func (f *TestFixture) CreateDownloads(names ...string) []string {
	f.T.Helper()

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = f.CreateDownload(name, []byte(name))
	}
	return paths
}

// CreateFileWithAge writes a file whose modification time is age in the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()

	path := f.CreateFile(relPath, content)
	mtime := time.Now().Add(-age).Truncate(time.Second)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		f.T.Fatalf("chtimes %s: %v", path, err)
	}
	return path
}

// CreateDir creates relPath and returns its full path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()
	path := f.Path(relPath)
	f.mkdir(path)
	return path
}

// DestinationDirs maps every name to a directory under Sorted. Only the names
// in create exist on disk.
func (f *TestFixture) DestinationDirs(names []string, create ...string) map[string]string {
	f.T.Helper()

	dirs := make(map[string]string, len(names))
	for _, name := range names {
		dirs[name] = filepath.Join(f.Sorted, name)
	}
	for _, name := range create {
		f.mkdir(filepath.Join(f.Sorted, name))
	}
	return dirs
}

// CreateReadOnlyDir creates a directory nothing can be moved into or out of.
// Write permission comes back at cleanup so TempDir can be removed.
func (f *TestFixture) CreateReadOnlyDir(relPath string) string {
	f.T.Helper()

	path := f.CreateDir(relPath)
	if err := os.Chmod(path, 0o555); err != nil {
		f.T.Fatalf("chmod %s: %v", path, err)
	}
	f.T.Cleanup(func() { _ = os.Chmod(path, 0o755) })
	return path
}

// CreateSymlink creates linkPath (relative to the root) pointing at target
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	path := f.Path(linkPath)
	f.mkdir(filepath.Dir(path))
	if err := os.Symlink(target, path); err != nil {
		f.T.Fatalf("symlink %s -> %s: %v", path, target, err)
	}
	return path
}

// ============================================================================
// Assertions
// ============================================================================

// FileExists reports whether path exists, without following a final symlink
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected %s to exist", path)
	}
}

func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected %s to be gone", path)
	}
}

// AssertFileContent fails unless path holds exactly want
func (f *TestFixture) AssertFileContent(path string, want []byte) {
	f.T.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		f.T.Errorf("read %s: %v", path, err)
		return
	}
	if string(got) != string(want) {
		f.T.Errorf("%s holds %q, want %q", path, got, want)
	}
}

func (f *TestFixture) AssertIsSymlink(path string) {
	f.T.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		f.T.Errorf("lstat %s: %v", path, err)
		return
	}
	if info.Mode()&os.ModeSymlink == 0 {
		f.T.Errorf("expected %s to be a symlink", path)
	}
}

func (f *TestFixture) AssertDirEmpty(dir string) {
	f.T.Helper()
	if names := ListNames(f.T, dir); len(names) > 0 {
		f.T.Errorf("expected %s to be empty, found %v", dir, names)
	}
}

// ListNames returns the sorted entry names of dir. A missing dir has none.
func ListNames(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	slices.Sort(names)
	return names
}

// ============================================================================
// Environment
// ============================================================================

// SkipIfRoot skips permission tests, which root bypasses
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
}

// SkipOnWindows skips tests that rely on POSIX permissions or symlinks
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs POSIX permissions and symlinks")
	}
}

// PathTestCase is one destination validation case
type PathTestCase struct {
	Name        string
	Path        string
	ShouldPass  bool
	Description string
}

// DestinationPathTestCases are shared by the validator and destination tests
func DestinationPathTestCases() []PathTestCase {
	return []PathTestCase{
		{Name: "absolute_path", Path: "/tmp/sorted/Music", ShouldPass: true, Description: "plain absolute folder"},
		{Name: "under_downloads", Path: "/home/user/Downloads/Music", ShouldPass: true, Description: "category under downloads"},
		{Name: "spaces", Path: "/home/user/My Music (2)", ShouldPass: true, Description: "spaces and parentheses"},
		{Name: "dotted_name", Path: "/mnt/media/music.archive", ShouldPass: true, Description: "dot inside a folder name"},
		{Name: "double_slash", Path: "//tmp//sorted", ShouldPass: true, Description: "cleaned before checking"},

		{Name: "root", Path: "/", ShouldPass: false, Description: "filesystem root"},
		{Name: "etc", Path: "/etc", ShouldPass: false, Description: "system config"},
		{Name: "bin", Path: "/bin", ShouldPass: false, Description: "system binaries"},
		{Name: "usr", Path: "/usr", ShouldPass: false, Description: "system tree"},
		{Name: "etc_child", Path: "/etc/music", ShouldPass: false, Description: "direct child of a system path"},

		{Name: "empty", Path: "", ShouldPass: false, Description: "empty path"},
		{Name: "relative", Path: "relative/path", ShouldPass: false, Description: "relative path"},
		{Name: "null_byte", Path: "/tmp/mus\x00ic", ShouldPass: false, Description: "NUL byte"},
	}
}
