package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/fenilsonani/dlsort/internal/ui/styles"
)

// Shortcut is one key hint shown on the right of the status bar
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar represents a status bar component that displays at the bottom of views
type StatusBar struct {
	viewName  string
	mode      string
	count     int
	countNoun string
	size      int64
	shortcuts []Shortcut
}

// NewStatusBar creates a new status bar
func NewStatusBar() *StatusBar {
	return &StatusBar{}
}

// SetView sets the current view name
func (s *StatusBar) SetView(viewName string) {
	s.viewName = viewName
}

// SetMode shows a highlighted mode tag such as DRY RUN
func (s *StatusBar) SetMode(mode string) {
	s.mode = mode
}

// SetCount shows "n noun" next to the view name
func (s *StatusBar) SetCount(n int, noun string) {
	s.count = n
	s.countNoun = noun
}

// SetSize shows a byte total
func (s *StatusBar) SetSize(size int64) {
	s.size = size
}

// SetShortcuts sets the shortcuts to display, in order
func (s *StatusBar) SetShortcuts(shortcuts ...Shortcut) {
	s.shortcuts = shortcuts
}

// Render renders the status bar with the given width
func (s *StatusBar) Render(width int) string {
	if width <= 0 {
		width = 80
	}

	var parts []string

	if s.viewName != "" {
		parts = append(parts, styles.BoldStyle.Render(s.viewName))
	}

	if s.mode != "" {
		parts = append(parts, styles.WarningStyle.Render(s.mode))
	}

	if s.countNoun != "" {
		parts = append(parts, fmt.Sprintf("%d %s", s.count, s.countNoun))
	}

	if s.size > 0 {
		parts = append(parts, styles.FileSizeStyle.Render(humanize.IBytes(uint64(s.size))))
	}

	leftSide := strings.Join(parts, " • ")

	shortcutParts := make([]string, 0, len(s.shortcuts))
	for _, sc := range s.shortcuts {
		shortcutParts = append(shortcutParts, fmt.Sprintf("%s:%s", styles.DimStyle.Render(sc.Key), sc.Desc))
	}
	rightSide := strings.Join(shortcutParts, " ")

	leftLen := lipgloss.Width(leftSide)
	rightLen := lipgloss.Width(rightSide)
	spacing := width - leftLen - rightLen - 2 // -2 for padding

	if spacing < 1 {
		// Not enough space, drop shortcuts from the end until they fit
		for len(shortcutParts) > 0 && leftLen+lipgloss.Width(strings.Join(shortcutParts, " "))+3 > width {
			shortcutParts = shortcutParts[:len(shortcutParts)-1]
		}
		rightSide = strings.Join(shortcutParts, " ")
		spacing = 1
	}

	statusLine := leftSide + strings.Repeat(" ", spacing) + rightSide

	return styles.StatusBarStyle.Width(width).Render(statusLine)
}

// RenderSimple renders a simple status bar with just a message
func RenderSimple(message string, width int) string {
	if width <= 0 {
		width = 80
	}
	return styles.StatusBarStyle.Width(width).Render(message)
}
