package models

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dlsort/internal/config"
	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/mover"
	"github.com/fenilsonani/dlsort/internal/rules"
	"github.com/fenilsonani/dlsort/internal/testutil"
)

func openEngine(t *testing.T, f *testutil.TestFixture, relocator ...mover.Relocator) *engine.Engine {
	t.Helper()
	cfg := &config.Config{
		BaseDir:           f.Downloads,
		RulesFile:         filepath.Join(f.RootDir, "config", "categories.json"),
		DirectoriesFile:   filepath.Join(f.RootDir, "config", "category_directories.json"),
		CreateMissingDirs: true,
		FailurePolicy:     "continue",
		PollInterval:      10 * time.Millisecond,
		LockFile:          filepath.Join(f.RootDir, "data", "sort.lock"),
	}
	opts := engine.Options{Config: cfg}
	if len(relocator) > 0 {
		opts.Mover = relocator[0]
	}
	eng, err := engine.Open(opts)
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
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

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and returns its message, or nil for a nil command
func run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

// =============================================================================
// Category View Tests
// =============================================================================

func TestCategoryViewNavigation(t *testing.T) {
	f := testutil.NewFixture(t)
	m := NewCategoryViewModel(openEngine(t, f), 100, 40)
	n := len(m.categories)

	m, _ = m.Update(key("k"))
	if m.cursor != 0 {
		t.Errorf("cursor moved above the first row: %d", m.cursor)
	}

	m, _ = m.Update(key("j"))
	if m.cursor != 1 {
		t.Errorf("expected cursor 1, got %d", m.cursor)
	}

	m, _ = m.Update(key("G"))
	if m.cursor != n-1 {
		t.Errorf("expected cursor on last row %d, got %d", n-1, m.cursor)
	}
	cat, _ := m.Selected()
	if cat.Name != rules.OtherCategory {
		t.Errorf("expected %s last, got %s", rules.OtherCategory, cat.Name)
	}

	m, _ = m.Update(key("g"))
	if m.cursor != 0 {
		t.Errorf("expected cursor 0, got %d", m.cursor)
	}
}

func TestCategoryViewRemoveNeedsSecondPress(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)
	m := NewCategoryViewModel(eng, 100, 40)

	first, _ := m.Selected()
	before := len(eng.Categories())

	m, _ = m.Update(key("x"))
	if len(eng.Categories()) != before {
		t.Fatal("category removed on the first press")
	}
	if !strings.Contains(m.status, "again") {
		t.Errorf("expected a confirmation prompt, got %q", m.status)
	}

	m, _ = m.Update(key("x"))
	if len(eng.Categories()) != before-1 {
		t.Fatalf("expected %d categories, got %d", before-1, len(eng.Categories()))
	}
	if _, ok := findCategory(eng, first.Name); ok {
		t.Errorf("%s still present", first.Name)
	}
	if m.statusError {
		t.Errorf("unexpected error status: %s", m.status)
	}
}

func TestCategoryViewOtherKeyCancelsRemove(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)
	m := NewCategoryViewModel(eng, 100, 40)
	before := len(eng.Categories())

	m, _ = m.Update(key("x"))
	m, _ = m.Update(key("j"))
	m, _ = m.Update(key("k"))
	m, _ = m.Update(key("x"))

	if len(eng.Categories()) != before {
		t.Error("remove must be confirmed by two consecutive presses")
	}
}

func TestCategoryViewCannotRemoveOther(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)
	m := NewCategoryViewModel(eng, 100, 40)

	m, _ = m.Update(key("G"))
	m, _ = m.Update(key("x"))
	m, _ = m.Update(key("x"))

	if _, ok := findCategory(eng, rules.OtherCategory); !ok {
		t.Fatal("Other was removed")
	}
	if !m.statusError {
		t.Errorf("expected an error status, got %q", m.status)
	}
}

func TestCategoryViewKeysRequestActions(t *testing.T) {
	f := testutil.NewFixture(t)
	m := NewCategoryViewModel(openEngine(t, f), 100, 40)
	first, _ := m.Selected()

	tests := []struct {
		key  string
		want tea.Msg
	}{
		{"d", EditRequestedMsg{Field: FieldDirectory, Category: first.Name}},
		{"e", EditRequestedMsg{Field: FieldExtensions, Category: first.Name}},
		{"a", EditRequestedMsg{Field: FieldNewCategory}},
		{"b", EditRequestedMsg{Field: FieldBase}},
		{"s", SortRequestedMsg{}},
		{"enter", SortRequestedMsg{}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, cmd := m.Update(key(tt.key))
			if got := run(cmd); got != tt.want {
				t.Errorf("key %q: expected %#v, got %#v", tt.key, tt.want, got)
			}
		})
	}
}

func TestCategoryViewRendersCategories(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)
	m := NewCategoryViewModel(eng, 120, 40)

	view := m.View()
	for _, cat := range eng.Categories() {
		if !strings.Contains(view, cat.Name) {
			t.Errorf("view is missing category %s", cat.Name)
		}
	}

	m, _ = m.Update(key("i"))
	if m.info == nil || !strings.Contains(m.View(), "Category Information") {
		t.Error("expected the info panel after 'i'")
	}
	m, _ = m.Update(key("i"))
	if m.info != nil {
		t.Error("expected 'i' to close the info panel")
	}
}

// =============================================================================
// Edit View Tests
// =============================================================================

func TestEditViewSetsExtensions(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)
	name := eng.Categories()[0].Name

	m := NewEditViewModel(eng, FieldExtensions, name, 80, 24)
	m.input.SetValue("MP3, .Flac  wav")

	m, cmd := m.Update(key("enter"))
	msg, ok := run(cmd).(EditDoneMsg)
	if !ok {
		t.Fatalf("expected EditDoneMsg, got error %v", m.Err())
	}
	if !strings.Contains(msg.Status, ".mp3 .flac .wav") {
		t.Errorf("unexpected status %q", msg.Status)
	}

	cat, _ := findCategory(eng, name)
	want := []string{".mp3", ".flac", ".wav"}
	if strings.Join(cat.Extensions, " ") != strings.Join(want, " ") {
		t.Errorf("expected %v, got %v", want, cat.Extensions)
	}
}

func TestEditViewAddsCategory(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)

	m := NewEditViewModel(eng, FieldNewCategory, "", 80, 24)
	m.input.SetValue("Fonts .ttf")

	_, cmd := m.Update(key("enter"))
	if _, ok := run(cmd).(EditDoneMsg); !ok {
		t.Fatalf("expected EditDoneMsg, got error %v", m.Err())
	}

	cat, ok := findCategory(eng, "Fonts")
	if !ok {
		t.Fatal("Fonts not added")
	}
	if len(cat.Extensions) != 1 || cat.Extensions[0] != ".ttf" {
		t.Errorf("unexpected extensions %v", cat.Extensions)
	}
	if cat.Destination != filepath.Join(f.Downloads, "Fonts") {
		t.Errorf("unexpected destination %s", cat.Destination)
	}

	cats := eng.Categories()
	if n := len(cats); n < 2 || cats[n-2].Name != "Fonts" || cats[n-1].Name != rules.OtherCategory {
		t.Errorf("expected Fonts just before Other, got order %v", categoryNames(cats))
	}
}

func TestEditViewAddExistingCategoryFails(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)
	before := len(eng.Categories())

	m := NewEditViewModel(eng, FieldNewCategory, "", 80, 24)
	m.input.SetValue("Torrents .magnet")

	m, cmd := m.Update(key("enter"))
	if cmd != nil {
		t.Errorf("expected no command after a failed save, got %#v", run(cmd))
	}
	if !errors.Is(m.Err(), rules.ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", m.Err())
	}
	if got := len(eng.Categories()); got != before {
		t.Errorf("category count changed from %d to %d", before, got)
	}
}

func categoryNames(cats []engine.Category) []string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names
}

func TestEditViewSetsDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)
	name := eng.Categories()[0].Name
	target := filepath.Join(f.RootDir, "Elsewhere")

	m := NewEditViewModel(eng, FieldDirectory, name, 80, 24)
	m.input.SetValue(target)

	_, cmd := m.Update(key("enter"))
	if _, ok := run(cmd).(EditDoneMsg); !ok {
		t.Fatalf("expected EditDoneMsg, got error %v", m.Err())
	}

	cat, _ := findCategory(eng, name)
	if cat.Destination != target || !cat.Custom {
		t.Errorf("expected custom destination %s, got %+v", target, cat)
	}
}

func TestEditViewKeepsErrors(t *testing.T) {
	f := testutil.NewFixture(t)
	eng := openEngine(t, f)
	base := eng.BaseDirectory()

	m := NewEditViewModel(eng, FieldBase, "", 80, 24)
	m.input.SetValue("relative/dir")

	m, cmd := m.Update(key("enter"))
	if cmd != nil {
		t.Errorf("expected no command after a failed save, got %#v", run(cmd))
	}
	if m.Err() == nil {
		t.Fatal("expected an error for a relative base directory")
	}
	if !strings.Contains(m.View(), m.Err().Error()) {
		t.Error("error is not rendered")
	}
	if eng.BaseDirectory() != base {
		t.Errorf("base changed to %s", eng.BaseDirectory())
	}
}

func TestEditViewEscCancels(t *testing.T) {
	f := testutil.NewFixture(t)
	m := NewEditViewModel(openEngine(t, f), FieldBase, "", 80, 24)

	_, cmd := m.Update(key("esc"))
	if _, ok := run(cmd).(EditCanceledMsg); !ok {
		t.Error("expected EditCanceledMsg")
	}
}

// =============================================================================
// App Model Tests
// =============================================================================

func TestAppModelSortFlow(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("song.mp3", "paper.pdf")
	eng := openEngine(t, f)

	app := NewAppModel(context.Background(), eng)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	if _, cmd := app.Update(SortRequestedMsg{}); cmd == nil {
		t.Fatal("expected the sort view to start polling")
	}
	if app.State() != ViewSorting {
		t.Fatalf("expected ViewSorting, got %d", app.State())
	}

	select {
	case <-app.sortView.handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("sort did not finish")
	}

	msg := run(app.sortView.drain())
	complete, ok := msg.(SortCompleteMsg)
	if !ok {
		t.Fatalf("expected SortCompleteMsg, got %#v", msg)
	}
	if complete.Err != nil || complete.Report.Completed != 2 {
		t.Fatalf("unexpected result: %+v, %v", complete.Report, complete.Err)
	}
	if app.sortView.Tracker().Completed != 2 || app.sortView.Tracker().Fraction != 1 {
		t.Errorf("tracker not at 100%%: %+v", app.sortView.Tracker())
	}

	app.Update(complete)
	if app.State() != ViewSummary {
		t.Fatalf("expected ViewSummary, got %d", app.State())
	}
	if view := app.View(); !strings.Contains(view, "Moved 2 of 2 files") {
		t.Errorf("summary missing counts:\n%s", view)
	}

	_, cmd := app.Update(key("enter"))
	app.Update(run(cmd))
	if app.State() != ViewCategories {
		t.Errorf("expected ViewCategories, got %d", app.State())
	}
}

func TestAppModelQuitCancelsRunningSort(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateDownloads("a.mp3", "b.mp3", "c.mp3")
	gate := newGatedMover()
	eng := openEngine(t, f, gate)

	app := NewAppModel(context.Background(), eng)
	app.Update(SortRequestedMsg{})
	if app.State() != ViewSorting {
		t.Fatalf("expected ViewSorting, got %d", app.State())
	}
	<-gate.entered

	// A second sort is rejected while the first holds the runner
	second := NewAppModel(context.Background(), eng)
	second.Update(SortRequestedMsg{})
	if second.State() != ViewCategories || !second.categoryView.statusError {
		t.Errorf("expected the second sort to be rejected, state %d status %q",
			second.State(), second.categoryView.status)
	}

	_, cmd := app.Update(key("q"))
	if cmd != nil {
		t.Error("q during a sort must cancel, not quit")
	}
	if !strings.Contains(app.View(), "Canceling") {
		t.Error("expected the canceling notice")
	}
	close(gate.release)

	<-app.sortView.handle.Done()
	complete, ok := run(app.sortView.drain()).(SortCompleteMsg)
	if !ok {
		t.Fatal("expected SortCompleteMsg")
	}
	if !complete.Report.Canceled || complete.Report.Completed >= 3 {
		t.Errorf("expected a canceled partial sort, got %+v", complete.Report)
	}
}

func TestAppModelHelpToggle(t *testing.T) {
	f := testutil.NewFixture(t)
	app := NewAppModel(context.Background(), openEngine(t, f))

	app.Update(key("?"))
	if app.State() != ViewHelp {
		t.Fatalf("expected ViewHelp, got %d", app.State())
	}
	if !strings.Contains(app.View(), "Help - Categories") {
		t.Error("expected category help")
	}

	app.Update(key("j"))
	if app.State() != ViewCategories {
		t.Errorf("expected any key to close help, got %d", app.State())
	}
}

func TestAppModelEditCapturesKeys(t *testing.T) {
	f := testutil.NewFixture(t)
	app := NewAppModel(context.Background(), openEngine(t, f))

	app.Update(EditRequestedMsg{Field: FieldNewCategory})
	if app.State() != ViewEdit {
		t.Fatalf("expected ViewEdit, got %d", app.State())
	}

	app.Update(key("q"))
	app.Update(key("?"))
	if app.State() != ViewEdit {
		t.Fatalf("typing left the edit view: %d", app.State())
	}
	if got := app.editView.input.Value(); got != "q?" {
		t.Errorf("expected typed text %q, got %q", "q?", got)
	}

	app.Update(EditCanceledMsg{})
	if app.State() != ViewCategories {
		t.Errorf("expected ViewCategories, got %d", app.State())
	}
}
