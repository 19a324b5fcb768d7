package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/dlsort/internal/config"
	"github.com/fenilsonani/dlsort/internal/mover"
	"github.com/fenilsonani/dlsort/internal/progress"
	"github.com/fenilsonani/dlsort/internal/rules"
	"github.com/fenilsonani/dlsort/internal/session"
	"github.com/fenilsonani/dlsort/internal/testutil"
)

func testConfig(f *testutil.TestFixture) *config.Config {
	return &config.Config{
		BaseDir:           f.Downloads,
		RulesFile:         filepath.Join(f.RootDir, "config", "categories.json"),
		DirectoriesFile:   filepath.Join(f.RootDir, "config", "category_directories.json"),
		CreateMissingDirs: true,
		FailurePolicy:     "continue",
		ExcludePatterns:   append([]string(nil), config.DefaultExcludePatterns...),
		PollInterval:      10 * time.Millisecond,
		LockFile:          filepath.Join(f.RootDir, "data", "sort.lock"),
		Journal: config.JournalConfig{
			Enabled: true,
			Path:    filepath.Join(f.RootDir, "data", "history.db"),
		},
	}
}

func openEngine(t *testing.T, cfg *config.Config, opts ...func(*Options)) *Engine {
	t.Helper()
	o := Options{Config: cfg}
	for _, fn := range opts {
		fn(&o)
	}
	e, err := Open(o)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func writeRules(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// sortedPath is where a file lands under the default directory layout
func sortedPath(f *testutil.TestFixture, category, name string) string {
	return filepath.Join(f.Downloads, category, name)
}

func categoryByName(cats []Category, name string) (Category, bool) {
	for _, c := range cats {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// =============================================================================
// Open Tests
// =============================================================================

func TestOpenWithoutDocumentsUsesDefaults(t *testing.T) {
	f := testutil.NewFixture(t)
	e := openEngine(t, testConfig(f))

	cats := e.Categories()
	require.Len(t, cats, rules.Default().Len())
	assert.Equal(t, rules.OtherCategory, cats[len(cats)-1].Name)

	music, ok := categoryByName(cats, "Music")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.Downloads, "Music"), music.Destination)
	assert.False(t, music.Custom)
	assert.Equal(t, f.Downloads, e.BaseDirectory())
	assert.NotNil(t, e.Journal())

	// nothing is written until something changes
	f.AssertFileNotExists(e.Config().RulesFile)
}

func TestOpenMalformedDocumentsFallBack(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	writeRules(t, cfg.RulesFile, `{"Music": [".mp3"`)
	writeRules(t, cfg.DirectoriesFile, `not json`)

	e := openEngine(t, cfg)
	assert.Len(t, e.Categories(), rules.Default().Len())
}

func TestOpenRequiresConfig(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestOpenJournalFailureDisablesHistory(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	blocker := f.CreateFile("blocker", []byte("x"))
	cfg.Journal.Path = filepath.Join(blocker, "history.db")

	e := openEngine(t, cfg)
	assert.Nil(t, e.Journal())

	_, err := e.SortOnce(context.Background(), nil)
	assert.NoError(t, err)
}

// =============================================================================
// Category Tests
// =============================================================================

func TestOverlappingExtensionsFirstCategoryWins(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	writeRules(t, cfg.RulesFile, `{"Documents": [".pdf", ".txt"], "eBooks": [".epub", ".pdf"], "Other": []}`)
	f.CreateDownloads("manual.pdf")

	e := openEngine(t, cfg)
	report, err := e.SortOnce(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Moved, 1)
	assert.Equal(t, "Documents", report.Moved[0].Category)
	f.AssertFileExists(sortedPath(f, "Documents", "manual.pdf"))
}

func TestSetCategoryExtensionsPersists(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	e := openEngine(t, cfg)

	require.NoError(t, e.SetCategoryExtensions("Music", []string{"MP3", "opus", ".opus"}))
	require.NoError(t, e.SetCategoryExtensions("Fonts", []string{".ttf", ".otf"}))

	reopened := openEngine(t, cfg)
	cats := reopened.Categories()

	music, _ := categoryByName(cats, "Music")
	assert.Equal(t, []string{".mp3", ".opus"}, music.Extensions)

	fonts, ok := categoryByName(cats, "Fonts")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.Downloads, "Fonts"), fonts.Destination)
	assert.Equal(t, rules.OtherCategory, cats[len(cats)-1].Name, "new categories go before Other")
}

func TestSetCategoryExtensionsRejectsBadName(t *testing.T) {
	f := testutil.NewFixture(t)
	e := openEngine(t, testConfig(f))
	assert.Error(t, e.SetCategoryExtensions("../escape", []string{".x"}))
}

func TestSetCategoryDirectoryMigrates(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	e := openEngine(t, cfg)

	old := f.CreateDir("Downloads/Music")
	f.CreateFile("Downloads/Music/a.mp3", []byte("a"))
	f.CreateFile("Downloads/Music/b.mp3", []byte("b"))
	newDir := filepath.Join(f.RootDir, "Media", "Music")

	moved, err := e.SetCategoryDirectory("Music", newDir)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	f.AssertFileExists(filepath.Join(newDir, "a.mp3"))
	f.AssertFileExists(filepath.Join(newDir, "b.mp3"))
	f.AssertDirEmpty(old)

	music, _ := categoryByName(e.Categories(), "Music")
	assert.Equal(t, newDir, music.Destination)
	assert.True(t, music.Custom)

	reopened := openEngine(t, cfg)
	music, _ = categoryByName(reopened.Categories(), "Music")
	assert.Equal(t, newDir, music.Destination)
}

func TestSetCategoryDirectoryUnknownCategory(t *testing.T) {
	f := testutil.NewFixture(t)
	e := openEngine(t, testConfig(f))
	_, err := e.SetCategoryDirectory("Nope", filepath.Join(f.RootDir, "x"))
	assert.ErrorIs(t, err, rules.ErrUnknownCategory)
}

func TestAddAndRemoveCategory(t *testing.T) {
	f := testutil.NewFixture(t)
	e := openEngine(t, testConfig(f))

	require.NoError(t, e.AddCategory("Fonts", []string{".ttf"}))
	assert.ErrorIs(t, e.AddCategory("Fonts", nil), rules.ErrCategoryExists)

	require.NoError(t, e.RemoveCategory("Fonts"))
	_, ok := categoryByName(e.Categories(), "Fonts")
	assert.False(t, ok)

	assert.ErrorIs(t, e.RemoveCategory(rules.OtherCategory), rules.ErrReservedName)
}

func TestChangeBaseDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	e := openEngine(t, testConfig(f))

	custom := filepath.Join(f.RootDir, "Media", "Music")
	_, err := e.SetCategoryDirectory("Music", custom)
	require.NoError(t, err)

	newBase := f.CreateDir("Inbox")
	require.NoError(t, e.ChangeBaseDirectory(newBase))
	assert.Equal(t, newBase, e.BaseDirectory())

	cats := e.Categories()
	music, _ := categoryByName(cats, "Music")
	assert.Equal(t, custom, music.Destination, "custom directories keep their path")
	videos, _ := categoryByName(cats, "Videos")
	assert.Equal(t, filepath.Join(newBase, "Videos"), videos.Destination)

	assert.Error(t, e.ChangeBaseDirectory("relative/dir"))
}

// =============================================================================
// Sort Tests
// =============================================================================

func TestSortOnceCreatesDirectoriesAndReportsProgress(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	writeRules(t, cfg.RulesFile, `{"Music": [".mp3"], "Other": []}`)
	f.CreateDownloads("song.mp3", "notes.txt", "setup.crdownload")

	e := openEngine(t, cfg)

	var events []progress.Event
	report, err := e.SortOnce(context.Background(), func(ev progress.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, session.StateCompleted, report.State)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, []string{"setup.crdownload"}, report.Skipped)
	f.AssertFileExists(sortedPath(f, "Music", "song.mp3"))
	f.AssertFileExists(sortedPath(f, "Other", "notes.txt"))
	f.AssertFileExists(f.Path("Downloads/setup.crdownload"))

	require.Len(t, events, 2)
	assert.Equal(t, progress.Event{Fraction: 0.5, Completed: 1}, events[0])
	assert.Equal(t, progress.Event{Fraction: 1.0, Completed: 2}, events[1])
}

func TestSortWithoutCreatingDirectories(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	cfg.CreateMissingDirs = false
	writeRules(t, cfg.RulesFile, `{"Music": [".mp3"], "Other": []}`)
	f.CreateDownloads("song.mp3", "notes.txt")
	f.CreateDir("Downloads/Other")

	e := openEngine(t, cfg)
	report, err := e.SortOnce(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, session.StateCompleted, report.State)
	assert.Equal(t, 1, report.Completed)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0].Err, mover.ErrDestinationMissing)
	f.AssertFileExists(f.Path("Downloads/song.mp3"))
}

func TestSortRecordsHistory(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3", "photo.png")
	e := openEngine(t, testConfig(f))

	report, err := e.SortOnce(context.Background(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	sessions, err := e.Journal().Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, report.ID.String(), sessions[0].ID)

	moves, err := e.Journal().Moves(ctx, sessions[0].ID)
	require.NoError(t, err)
	assert.Len(t, moves, 2)
}

func TestDryRunMovesNothing(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3", "report.pdf")
	e := openEngine(t, testConfig(f), func(o *Options) { o.DryRun = true })

	report, err := e.SortOnce(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Completed)
	for _, o := range report.Moved {
		assert.Equal(t, mover.MethodDryRun, o.Result.Method)
	}
	f.AssertFileExists(f.Path("Downloads/song.mp3"))
	f.AssertFileExists(f.Path("Downloads/report.pdf"))
	f.AssertFileNotExists(filepath.Join(f.Downloads, "Music"))
}

func TestSortDryRunFlagOverridesPerCall(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3")
	e := openEngine(t, testConfig(f))

	report, err := e.Sort(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	f.AssertFileExists(f.Path("Downloads/song.mp3"))

	report, err = e.Sort(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, report.DryRun)
	f.AssertFileExists(sortedPath(f, "Music", "song.mp3"))
}

func TestSortUsesSnapshot(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	writeRules(t, cfg.RulesFile, `{"Music": [".mp3"], "Other": []}`)
	f.CreateDownloads("a.mp3", "b.mp3")

	gate := newGatedMover()
	e := openEngine(t, cfg, func(o *Options) { o.Mover = gate })

	h, err := e.StartSort(context.Background())
	require.NoError(t, err)
	<-gate.entered

	// changing rules mid-sort must not affect the running session
	require.NoError(t, e.SetCategoryExtensions("Music", []string{".flac"}))
	close(gate.release)

	report, err := h.Wait()
	require.NoError(t, err)
	for _, o := range report.Moved {
		assert.Equal(t, "Music", o.Category)
	}
}

func TestStartSortRejectsConcurrentSort(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("a.mp3")

	gate := newGatedMover()
	e := openEngine(t, testConfig(f), func(o *Options) { o.Mover = gate })

	h, err := e.StartSort(context.Background())
	require.NoError(t, err)
	<-gate.entered
	assert.True(t, e.Running())

	_, err = e.StartSort(context.Background())
	assert.ErrorIs(t, err, session.ErrSessionInProgress)

	close(gate.release)
	_, err = h.Wait()
	require.NoError(t, err)

	// the lock is released once the session finishes
	_, err = e.SortOnce(context.Background(), nil)
	assert.NoError(t, err)
}

func TestStartSortRespectsProcessLock(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	e := openEngine(t, cfg)

	held, err := session.AcquireLock(cfg.LockFile)
	require.NoError(t, err)
	defer held.Release()

	_, err = e.StartSort(context.Background())
	assert.ErrorIs(t, err, session.ErrLocked)
	assert.False(t, e.Running())
}

func TestStartSortRightAfterRunningEnds(t *testing.T) {
	f := testutil.NewFixture(t)
	e := openEngine(t, testConfig(f))

	for i := 0; i < 20; i++ {
		f.CreateDownloads(fmt.Sprintf("track%d.mp3", i))

		h, err := e.StartSort(context.Background())
		require.NoError(t, err)

		require.Eventually(t, func() bool { return !e.Running() }, 5*time.Second, time.Millisecond)

		// the process lock must already be free once Running reports false
		h2, err := e.StartSort(context.Background())
		require.NoError(t, err, "run %d", i)
		_, err = h2.Wait()
		require.NoError(t, err)
		_, err = h.Wait()
		require.NoError(t, err)
	}
}

func TestSortMissingBaseDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	cfg := testConfig(f)
	cfg.BaseDir = filepath.Join(f.RootDir, "nowhere")
	cfg.CreateMissingDirs = false
	e := openEngine(t, cfg)

	report, err := e.SortOnce(context.Background(), nil)
	var srcErr *session.SourceDirectoryError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, session.StateFailed, report.State)
}

// gatedMover blocks every relocation until release is closed
type gatedMover struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	next    *mover.Mover
}

func newGatedMover() *gatedMover {
	return &gatedMover{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		next:    &mover.Mover{},
	}
}

func (g *gatedMover) Relocate(src, destDir string) (mover.Result, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.next.Relocate(src, destDir)
}
