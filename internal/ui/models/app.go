package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/session"
	"github.com/fenilsonani/dlsort/internal/ui/styles"
)

// ViewState represents the current view in the app
type ViewState int

const (
	ViewCategories ViewState = iota
	ViewEdit
	ViewSorting
	ViewSummary
	ViewHelp
)

// AppModel is the root model for the interactive TUI
type AppModel struct {
	// Current state
	state         ViewState
	previousState ViewState // For back navigation

	// Shared data
	ctx          context.Context
	engine       *engine.Engine
	pollInterval time.Duration

	// View models
	categoryView *CategoryViewModel
	editView     *EditViewModel
	sortView     *SortViewModel
	summaryView  *SummaryViewModel

	// UI state
	width  int
	height int
}

// NewAppModel creates a new app model. Sorts started from the UI stop when
// ctx is canceled.
func NewAppModel(ctx context.Context, eng *engine.Engine) *AppModel {
	return &AppModel{
		state:        ViewCategories,
		ctx:          ctx,
		engine:       eng,
		pollInterval: eng.Config().PollInterval,
		categoryView: NewCategoryViewModel(eng, 0, 0),
	}
}

// Init initializes the model
func (m *AppModel) Init() tea.Cmd {
	return nil
}

// State returns the current view
func (m *AppModel) State() ViewState {
	return m.state
}

// Update handles messages
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Text entry owns every key except ctrl+c
		if m.state == ViewEdit && msg.String() != "ctrl+c" {
			break
		}

		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == ViewHelp && msg.String() == "q" {
				m.state = m.previousState
				return m, nil
			}
			// A running sort is canceled first; the summary follows
			if m.sorting() {
				m.sortView.Cancel()
				return m, nil
			}
			return m, tea.Quit
		case "?":
			if m.state == ViewHelp {
				m.state = m.previousState
				return m, nil
			}
			m.previousState = m.state
			m.state = ViewHelp
			return m, nil
		}

		if m.state == ViewHelp {
			// Any other key closes help
			m.state = m.previousState
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case EditRequestedMsg:
		m.editView = NewEditViewModel(m.engine, msg.Field, msg.Category, m.width, m.height)
		m.state = ViewEdit
		return m, m.editView.Init()

	case EditDoneMsg:
		m.categoryView.Refresh()
		m.categoryView.SetStatus(msg.Status, false)
		m.state = ViewCategories
		return m, nil

	case EditCanceledMsg:
		m.state = ViewCategories
		return m, nil

	case SortRequestedMsg:
		h, err := m.engine.StartSort(m.ctx)
		if err != nil {
			m.categoryView.SetStatus(fmt.Sprintf("Cannot start sort: %v", err), true)
			return m, nil
		}
		m.sortView = NewSortViewModel(h, m.pollInterval, m.engine.DryRun(), m.width, m.height)
		m.state = ViewSorting
		return m, m.sortView.Init()

	case SortCompleteMsg:
		m.summaryView = NewSummaryViewModel(msg.Report, msg.Err, m.width, m.height)
		m.state = ViewSummary
		return m, nil

	case BackToCategoriesMsg:
		m.categoryView.Refresh()
		m.state = ViewCategories
		return m, nil
	}

	// Delegate to current view
	return m.delegateUpdate(msg)
}

// sorting reports whether a sort view is active, possibly behind help
func (m *AppModel) sorting() bool {
	return m.sortView != nil &&
		(m.state == ViewSorting || (m.state == ViewHelp && m.previousState == ViewSorting))
}

// delegateUpdate delegates the update to the current view
func (m *AppModel) delegateUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.state {
	case ViewCategories:
		m.categoryView, cmd = m.categoryView.Update(msg)
	case ViewEdit:
		if m.editView != nil {
			m.editView, cmd = m.editView.Update(msg)
		}
	case ViewSorting:
		if m.sortView != nil {
			m.sortView, cmd = m.sortView.Update(msg)
		}
	case ViewSummary:
		if m.summaryView != nil {
			m.summaryView, cmd = m.summaryView.Update(msg)
		}
	case ViewHelp:
		// The sort keeps polling and animating while help is open
		if m.previousState == ViewSorting && m.sortView != nil {
			m.sortView, cmd = m.sortView.Update(msg)
		}
	}

	return m, cmd
}

// View renders the current view
func (m *AppModel) View() string {
	switch m.state {
	case ViewCategories:
		return m.categoryView.View()
	case ViewEdit:
		if m.editView != nil {
			return m.editView.View()
		}
	case ViewSorting:
		if m.sortView != nil {
			return m.sortView.View()
		}
	case ViewSummary:
		if m.summaryView != nil {
			return m.summaryView.View()
		}
	case ViewHelp:
		return m.renderHelp()
	}

	return "Loading..."
}

// renderHelp renders the help view with context-aware content
func (m *AppModel) renderHelp() string {
	var b strings.Builder

	var viewName string
	var helpContent string

	switch m.previousState {
	case ViewCategories:
		viewName = "Categories"
		helpContent = helpForCategories
	case ViewSorting:
		viewName = "Sorting"
		helpContent = helpForSorting
	case ViewSummary:
		viewName = "Summary"
		helpContent = helpForSummary
	default:
		viewName = "General"
		helpContent = helpForGeneral
	}

	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Help - %s", viewName)))
	b.WriteString("\n\n")
	b.WriteString(helpContent)
	b.WriteString("\n\n")
	b.WriteString(styles.HelpStyle.Render("Press any key to close"))

	return b.String()
}

const helpForCategories = `Every file directly inside the downloads folder is moved into the
folder of the first category listing its extension.

Navigation:
  ↑/k     - Move up
  ↓/j     - Move down
  g / G   - Go to top / bottom

Editing:
  d       - Change the category's folder (already sorted files follow)
  e       - Edit the category's extensions
  a       - Add a category
  x       - Remove the category (press twice)
  b       - Change the downloads folder
  i       - Show category details

Actions:
  s/enter - Sort now
  q       - Quit`

const helpForSorting = `Files are being moved into their category folders.

Actions:
  c/esc   - Cancel after the current file
  q       - Cancel after the current file

The summary is shown when the sort finishes.`

const helpForSummary = `The sort has finished. Review the results.

Actions:
  enter/b - Back to categories
  q       - Exit application

Files that could not be moved stay in the downloads folder.`

const helpForGeneral = `dlsort - Interactive Mode Help

Global Shortcuts:
  ?       - Toggle this help
  q       - Quit (from most views)
  ctrl+c  - Force quit`

// Custom messages

// EditRequestedMsg opens the edit view for a field
type EditRequestedMsg struct {
	Field    EditField
	Category string
}

// EditDoneMsg reports a saved edit
type EditDoneMsg struct {
	Status string
}

// EditCanceledMsg closes the edit view without changes
type EditCanceledMsg struct{}

// SortRequestedMsg starts a sort
type SortRequestedMsg struct{}

// SortCompleteMsg carries the finished session
type SortCompleteMsg struct {
	Report *session.Report
	Err    error
}

// BackToCategoriesMsg returns from the summary
type BackToCategoriesMsg struct{}
