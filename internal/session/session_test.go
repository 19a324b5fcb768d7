package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/dlsort/internal/mover"
	"github.com/fenilsonani/dlsort/internal/progress"
	"github.com/fenilsonani/dlsort/internal/rules"
	"github.com/fenilsonani/dlsort/internal/testutil"
)

func musicRules() *rules.RuleSet {
	return rules.New(
		rules.Category{Name: "Music", Extensions: []string{".mp3"}},
		rules.Category{Name: "Other"},
	)
}

func collect() (func(progress.Event), *[]progress.Event) {
	var events []progress.Event
	return func(e progress.Event) { events = append(events, e) }, &events
}

// =============================================================================
// Scenario Tests
// =============================================================================

func TestRunSortsByCategory(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3", "notes.txt")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	onProgress, events := collect()
	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
	}).Run(context.Background(), onProgress)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Completed)
	assert.Empty(t, report.Errors)

	f.AssertFileExists(f.SortedPath("Music", "song.mp3"))
	f.AssertFileExists(f.SortedPath("Other", "notes.txt"))
	f.AssertDirEmpty(f.Downloads)

	// Enumeration order is not part of the contract, the event sequence is
	require.Len(t, *events, 2)
	assert.Equal(t, progress.Event{Fraction: 0.5, Completed: 1}, (*events)[0])
	assert.Equal(t, progress.Event{Fraction: 1.0, Completed: 2}, (*events)[1])
}

func TestRunContinuesPastMissingDestination(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3", "notes.txt")
	// Music directory is never created
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Other")

	onProgress, events := collect()
	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
		Policy:       PolicyContinue,
	}).Run(context.Background(), onProgress)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.False(t, report.Aborted)
	assert.Equal(t, 1, report.Completed)
	require.Len(t, report.Errors, 1)

	fe := report.Errors[0]
	assert.Equal(t, "song.mp3", fe.Name)
	assert.Equal(t, "Music", fe.Category)
	assert.ErrorIs(t, fe, mover.ErrDestinationMissing)
	assert.Equal(t, mover.ReasonDestinationMissing, fe.Err.Reason)

	f.AssertFileExists(filepath.Join(f.Downloads, "song.mp3"))
	f.AssertFileExists(f.SortedPath("Other", "notes.txt"))

	require.Len(t, *events, 1)
	assert.Equal(t, 1, (*events)[0].Completed)
	assert.ErrorIs(t, report.Err(), mover.ErrDestinationMissing)
}

func TestRunAbortPolicyStopsAtFirstFailure(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("a.mp3", "b.mp3", "c.mp3")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Other")

	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
		Policy:       PolicyAbort,
	}).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.True(t, report.Aborted)
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, 0, report.Completed)
	assert.Len(t, testutil.ListNames(t, f.Downloads), 3)
}

func TestRunCollisionLeavesFileInPlace(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownload("song.mp3", []byte("new"))
	f.CreateFile("Sorted/Music/song.mp3", []byte("old"))
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Other")

	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
	}).Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], mover.ErrNameCollision)
	f.AssertFileContent(filepath.Join(f.Downloads, "song.mp3"), []byte("new"))
	f.AssertFileContent(f.SortedPath("Music", "song.mp3"), []byte("old"))
}

func TestRunUnmappedCategoryIsPerFileError(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3")
	dirs := f.DestinationDirs([]string{"Other"}, "Other")

	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
	}).Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], mover.ErrDestinationMissing)
}

// =============================================================================
// Boundary Tests
// =============================================================================

func TestRunEmptySource(t *testing.T) {
	f := testutil.NewFixture(t)
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	onProgress, events := collect()
	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
	}).Run(context.Background(), onProgress)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.Completed)
	assert.Empty(t, *events)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3", "notes.txt")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")
	req := Request{Source: f.Downloads, Rules: musicRules(), Destinations: dirs}

	_, err := New(req).Run(context.Background(), nil)
	require.NoError(t, err)

	onProgress, events := collect()
	report, err := New(req).Run(context.Background(), onProgress)
	require.NoError(t, err)

	assert.Zero(t, report.Total)
	assert.Empty(t, *events)
}

func TestRunMissingSourceFails(t *testing.T) {
	f := testutil.NewFixture(t)

	s := New(Request{Source: f.Path("nope"), Rules: musicRules()})
	report, err := s.Run(context.Background(), nil)

	var srcErr *SourceDirectoryError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, f.Path("nope"), srcErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, StateFailed, s.State())
}

func TestRunSourceIsFileFails(t *testing.T) {
	f := testutil.NewFixture(t)
	file := f.CreateFile("plain.txt", []byte("x"))

	_, err := New(Request{Source: file, Rules: musicRules()}).Run(context.Background(), nil)

	var srcErr *SourceDirectoryError
	assert.ErrorAs(t, err, &srcErr)
}

func TestScanSkipsDirectoriesAndExcluded(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3", "movie.mkv.crdownload", "ISO.PART")
	f.CreateDir("Downloads/album")
	f.CreateFile("Downloads/album/track.mp3", []byte("nested"))
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
		Exclude:      []string{"*.crdownload", "*.part"},
	}).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.ElementsMatch(t, []string{"movie.mkv.crdownload", "ISO.PART"}, report.Skipped)
	f.AssertFileExists(filepath.Join(f.Downloads, "album", "track.mp3"))
	f.AssertFileExists(f.SortedPath("Music", "song.mp3"))
}

func TestScanCountsSymlinksToFiles(t *testing.T) {
	testutil.SkipOnWindows(t)

	f := testutil.NewFixture(t)
	target := f.CreateFile("elsewhere/real.mp3", []byte("x"))
	f.CreateSymlink(target, "Downloads/link.mp3")
	f.CreateSymlink(f.CreateDir("elsewhere/dir"), "Downloads/dirlink")
	f.CreateSymlink(f.Path("missing"), "Downloads/broken.mp3")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
	}).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	f.AssertIsSymlink(f.SortedPath("Music", "link.mp3"))
	f.AssertFileContent(target, []byte("x"))
}

// =============================================================================
// Cancellation and Dry Run Tests
// =============================================================================

func TestRunCanceledBeforeStart(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("a.mp3", "b.mp3")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
	}).Run(ctx, nil)
	require.NoError(t, err)

	assert.True(t, report.Canceled)
	assert.Equal(t, 2, report.Total)
	assert.Zero(t, report.Completed)
	assert.Equal(t, StateCompleted, report.State)
}

func TestRunDryRunMovesNothing(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3", "notes.txt")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	report, err := New(Request{
		Source:       f.Downloads,
		Rules:        musicRules(),
		Destinations: dirs,
		Mover:        &mover.Mover{DryRun: true},
		DryRun:       true,
	}).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Completed)
	for _, o := range report.Moved {
		assert.Equal(t, mover.MethodDryRun, o.Result.Method)
	}
	assert.Len(t, testutil.ListNames(t, f.Downloads), 2)
}

// =============================================================================
// Runner Tests
// =============================================================================

// gatedMover blocks every relocation until release is closed
type gatedMover struct {
	release chan struct{}
	inner   mover.Relocator
}

func (g *gatedMover) Relocate(src, destDir string) (mover.Result, error) {
	<-g.release
	return g.inner.Relocate(src, destDir)
}

func TestRunnerRejectsConcurrentStart(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	gate := &gatedMover{release: make(chan struct{}), inner: &mover.Mover{}}
	req := Request{Source: f.Downloads, Rules: musicRules(), Destinations: dirs, Mover: gate}

	var r Runner
	h, err := r.Start(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, r.Running())

	_, err = r.Start(context.Background(), req)
	assert.ErrorIs(t, err, ErrSessionInProgress)

	close(gate.release)
	report, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
	assert.False(t, r.Running())

	// A finished runner accepts the next session
	h2, err := r.Start(context.Background(), req)
	require.NoError(t, err)
	_, _ = h2.Wait()
}

func TestRunnerDeliversEventsThroughQueue(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("a.mp3", "b.mp3", "c.txt", "d.txt")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	var (
		mu        sync.Mutex
		completed *Report
	)
	r := &Runner{OnComplete: func(rep *Report, err error) {
		mu.Lock()
		completed = rep
		mu.Unlock()
	}}

	h, err := r.Start(context.Background(), Request{Source: f.Downloads, Rules: musicRules(), Destinations: dirs})
	require.NoError(t, err)

	tracker := progress.NewTracker(0)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for !h.Events.Closed() {
		<-ticker.C
		tracker.Apply(h.Events.Drain())
	}
	tracker.Apply(h.Events.Drain())

	report, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, 4, tracker.Completed)
	assert.Equal(t, 1.0, tracker.Fraction)
	assert.Equal(t, 4, h.Total())
	assert.Equal(t, StateCompleted, h.State())

	mu.Lock()
	assert.Same(t, report, completed)
	mu.Unlock()
}

func TestRunnerBusyUntilOnCompleteReturns(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("a.mp3")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")
	req := Request{Source: f.Downloads, Rules: musicRules(), Destinations: dirs}

	var (
		r             Runner
		busyInside    bool
		startedInside error
	)
	r.OnComplete = func(*Report, error) {
		busyInside = r.Running()
		_, startedInside = r.Start(context.Background(), req)
	}

	h, err := r.Start(context.Background(), req)
	require.NoError(t, err)
	_, err = h.Wait()
	require.NoError(t, err)

	assert.True(t, busyInside)
	assert.ErrorIs(t, startedInside, ErrSessionInProgress)
	assert.False(t, r.Running())
}

func TestHandleCancel(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("a.mp3", "b.mp3", "c.mp3")
	dirs := f.DestinationDirs([]string{"Music", "Other"}, "Music", "Other")

	gate := &gatedMover{release: make(chan struct{}), inner: &mover.Mover{}}
	var r Runner
	h, err := r.Start(context.Background(), Request{Source: f.Downloads, Rules: musicRules(), Destinations: dirs, Mover: gate})
	require.NoError(t, err)

	h.Cancel()
	close(gate.release)

	report, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, report.Canceled)
	assert.Less(t, report.Completed, 3)
}

// =============================================================================
// Lock and Policy Tests
// =============================================================================

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "dlsort.lock")

	first, err := AcquireLock(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())

	_, err = AcquireLock(path)
	assert.True(t, errors.Is(err, ErrLocked), "expected ErrLocked, got %v", err)

	require.NoError(t, first.Release())

	again, err := AcquireLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyContinue, false},
		{"continue", PolicyContinue, false},
		{" Abort ", PolicyAbort, false},
		{"explode", PolicyContinue, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, got, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) Policy {
	t.Helper()
	p, err := ParsePolicy(s)
	require.NoError(t, err)
	return p
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "relocating", StateRelocating.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateScanning.Terminal())
}
