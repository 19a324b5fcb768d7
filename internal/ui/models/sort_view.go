package models

import (
	"fmt"
	"strings"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dlsort/internal/progress"
	"github.com/fenilsonani/dlsort/internal/session"
	"github.com/fenilsonani/dlsort/internal/ui/styles"
)

// DefaultPollInterval is used when the configured interval is not positive
const DefaultPollInterval = 100 * time.Millisecond

// pollMsg asks the sort view to drain the session's progress queue
type pollMsg struct{}

// SortViewModel shows a running sort and polls its progress queue
type SortViewModel struct {
	handle    *session.Handle
	interval  time.Duration
	dryRun    bool
	spinner   spinner.Model
	progress  progressbar.Model
	tracker   *progress.Tracker
	canceling bool
	width     int
	height    int
}

// NewSortViewModel creates a view following h
func NewSortViewModel(h *session.Handle, interval time.Duration, dryRun bool, width, height int) *SortViewModel {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	p := progressbar.New(progressbar.WithDefaultGradient())
	if width > 8 {
		p.Width = width - 8
	}

	return &SortViewModel{
		handle:   h,
		interval: interval,
		dryRun:   dryRun,
		spinner:  s,
		progress: p,
		tracker:  progress.NewTracker(0),
		width:    width,
		height:   height,
	}
}

// Init initializes the sort view
func (m *SortViewModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.poll(),
	)
}

func (m *SortViewModel) poll() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}

// Cancel asks the session to stop before its next file
func (m *SortViewModel) Cancel() {
	m.canceling = true
	m.handle.Cancel()
}

// Tracker returns the displayed progress state
func (m *SortViewModel) Tracker() *progress.Tracker {
	return m.tracker
}

// Update handles messages
func (m *SortViewModel) Update(msg tea.Msg) (*SortViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 8 {
			m.progress.Width = m.width - 8
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "c", "esc":
			m.Cancel()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollMsg:
		return m, m.drain()
	}

	return m, nil
}

// drain applies every queued event, then either schedules the next poll or
// reports the finished session
func (m *SortViewModel) drain() tea.Cmd {
	if total := m.handle.Total(); total > m.tracker.Total {
		m.tracker.Total = total
	}
	m.tracker.Apply(m.handle.Events.Drain())

	select {
	case <-m.handle.Done():
		// Events pushed before Done are still queued
		m.tracker.Apply(m.handle.Events.Drain())
		report, err := m.handle.Wait()
		return func() tea.Msg { return SortCompleteMsg{Report: report, Err: err} }
	default:
		return m.poll()
	}
}

// View renders the sort view
func (m *SortViewModel) View() string {
	var b strings.Builder

	title := "📥 Sorting Downloads"
	if m.dryRun {
		title += " (dry run)"
	}
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n\n")

	b.WriteString(m.spinner.View())
	switch {
	case m.canceling:
		b.WriteString(styles.WarningStyle.Render(" Canceling after the current file... "))
	case m.handle.State() <= session.StateScanning:
		b.WriteString(" Scanning... ")
	default:
		b.WriteString(" Moving files... ")
	}
	b.WriteString(styles.DimStyle.Render(fmt.Sprintf("(%s)", time.Since(m.tracker.StartTime).Round(time.Second))))
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(m.tracker.Fraction))
	b.WriteString("\n\n")

	b.WriteString(m.tracker.String())
	b.WriteString("\n\n")

	b.WriteString(styles.HelpStyle.Render("c:cancel  ?:help"))

	return b.String()
}
