package models

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/rules"
	"github.com/fenilsonani/dlsort/internal/ui/components"
	"github.com/fenilsonani/dlsort/internal/ui/styles"
	uiutils "github.com/fenilsonani/dlsort/internal/ui/utils"
)

// CategoryViewModel lists the categories with their extensions and folders
type CategoryViewModel struct {
	engine     *engine.Engine
	categories []engine.Category
	cursor     int
	offset     int
	width      int
	height     int

	status      string
	statusError bool

	// pendingRemove holds the category awaiting a second 'x'
	pendingRemove string
	info          *components.InfoPanel
}

// NewCategoryViewModel creates a new category view model
func NewCategoryViewModel(eng *engine.Engine, width, height int) *CategoryViewModel {
	// Use default dimensions if not provided
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	m := &CategoryViewModel{
		engine: eng,
		width:  width,
		height: height,
	}
	m.Refresh()
	return m
}

// Refresh reloads the categories from the engine, keeping the cursor in range
func (m *CategoryViewModel) Refresh() {
	m.categories = m.engine.Categories()
	if m.cursor >= len(m.categories) {
		m.cursor = len(m.categories) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.pendingRemove = ""
	m.info = nil
	m.scroll()
}

// SetStatus shows a one-line message under the list
func (m *CategoryViewModel) SetStatus(status string, isError bool) {
	m.status = status
	m.statusError = isError
}

// Selected returns the category under the cursor
func (m *CategoryViewModel) Selected() (engine.Category, bool) {
	if m.cursor < 0 || m.cursor >= len(m.categories) {
		return engine.Category{}, false
	}
	return m.categories[m.cursor], true
}

// Init initializes the category view
func (m *CategoryViewModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *CategoryViewModel) Update(msg tea.Msg) (*CategoryViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scroll()

	case tea.KeyMsg:
		key := msg.String()
		if key != "x" {
			m.pendingRemove = ""
		}

		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.categories)-1 {
				m.cursor++
			}
		case "g":
			m.cursor = 0
		case "G":
			if len(m.categories) > 0 {
				m.cursor = len(m.categories) - 1
			}
		case "i":
			if m.info != nil && m.info.IsVisible() {
				m.info = nil
				break
			}
			if cat, ok := m.Selected(); ok {
				m.info = components.CategoryInfoPanel(cat, m.categories, m.width)
				m.info.SetVisible(true)
			}
		case "d":
			return m, m.requestEdit(FieldDirectory)
		case "e":
			return m, m.requestEdit(FieldExtensions)
		case "a":
			return m, editRequest(FieldNewCategory, "")
		case "b":
			return m, editRequest(FieldBase, "")
		case "x":
			m.removeSelected()
		case "s", "enter":
			return m, func() tea.Msg { return SortRequestedMsg{} }
		}

		if m.info != nil && key != "i" {
			m.info = nil
		}
		m.scroll()
	}

	return m, nil
}

func (m *CategoryViewModel) requestEdit(field EditField) tea.Cmd {
	cat, ok := m.Selected()
	if !ok {
		return nil
	}
	return editRequest(field, cat.Name)
}

func editRequest(field EditField, category string) tea.Cmd {
	return func() tea.Msg {
		return EditRequestedMsg{Field: field, Category: category}
	}
}

// removeSelected deletes the category under the cursor on the second 'x'
func (m *CategoryViewModel) removeSelected() {
	cat, ok := m.Selected()
	if !ok {
		return
	}

	if m.pendingRemove != cat.Name {
		m.pendingRemove = cat.Name
		m.SetStatus(fmt.Sprintf("Press x again to remove %s", cat.Name), false)
		return
	}

	err := m.engine.RemoveCategory(cat.Name)
	m.Refresh()
	switch {
	case errors.Is(err, rules.ErrReservedName):
		m.SetStatus(fmt.Sprintf("%s catches every unmatched file and cannot be removed", cat.Name), true)
	case err != nil:
		m.SetStatus(fmt.Sprintf("Cannot remove %s: %v", cat.Name, err), true)
	default:
		m.SetStatus(fmt.Sprintf("Removed %s", cat.Name), false)
	}
}

// scroll keeps the cursor inside the visible page
func (m *CategoryViewModel) scroll() {
	pageSize := uiutils.CalculatePageSize(m.height)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+pageSize {
		m.offset = m.cursor - pageSize + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// View renders the category list
func (m *CategoryViewModel) View() string {
	var b strings.Builder

	// Show warning if terminal is too small
	if warning := uiutils.GetSizeWarningBanner(m.width, m.height); warning != "" {
		b.WriteString(warning)
	}

	b.WriteString(styles.TitleStyle.Render("📥 Downloads Sorter"))
	b.WriteString("\n")
	b.WriteString(styles.DimStyle.Render("Sorting ") +
		styles.FilePathStyle.Render(uiutils.DisplayPath(m.engine.BaseDirectory(), m.width-10)))
	b.WriteString("\n\n")

	nameWidth := 4
	for _, cat := range m.categories {
		if w := lipgloss.Width(cat.Name); w > nameWidth {
			nameWidth = w
		}
	}
	extWidth := (m.width - nameWidth - 10) / 2
	if extWidth < 12 {
		extWidth = 12
	}

	pageSize := uiutils.CalculatePageSize(m.height)
	end := m.offset + pageSize
	if end > len(m.categories) {
		end = len(m.categories)
	}

	for i := m.offset; i < end; i++ {
		cat := m.categories[i]

		cursor := "  "
		if i == m.cursor {
			cursor = styles.SelectedStyle.Render("→ ")
		}

		nameStyle := lipgloss.NewStyle().
			Foreground(styles.GetCategoryColor(cat.Name)).
			Bold(true).
			Width(nameWidth)

		exts := strings.Join(cat.Extensions, " ")
		if cat.Name == rules.OtherCategory && exts == "" {
			exts = "(everything else)"
		}

		dest := uiutils.DisplayPath(cat.Destination, m.width-nameWidth-extWidth-10)
		if cat.Custom {
			dest = styles.CustomBadgeStyle.Render("custom") + " " + dest
		}

		fmt.Fprintf(&b, "%s%s %s  %s  %s\n",
			cursor,
			styles.GetCategoryIcon(cat.Name),
			nameStyle.Render(cat.Name),
			styles.CategoryStyle.Render(uiutils.TruncateString(exts, extWidth)),
			styles.FilePathStyle.Render(dest),
		)
	}

	if len(m.categories) > pageSize {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(m.categories))))
		b.WriteString("\n")
	}

	if m.info != nil {
		b.WriteString("\n")
		b.WriteString(m.info.Render())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		if m.statusError {
			b.WriteString(styles.ErrorStyle.Render(m.status))
		} else {
			b.WriteString(styles.SuccessStyle.Render(m.status))
		}
		b.WriteString("\n\n")
	}

	statusBar := components.NewStatusBar()
	statusBar.SetView("Categories")
	statusBar.SetCount(len(m.categories), "categories")
	if m.engine.DryRun() {
		statusBar.SetMode("DRY RUN")
	}
	statusBar.SetShortcuts(
		components.Shortcut{Key: "↑/↓", Desc: "navigate"},
		components.Shortcut{Key: "d", Desc: "folder"},
		components.Shortcut{Key: "e", Desc: "extensions"},
		components.Shortcut{Key: "a", Desc: "add"},
		components.Shortcut{Key: "x", Desc: "remove"},
		components.Shortcut{Key: "b", Desc: "base"},
		components.Shortcut{Key: "s", Desc: "sort"},
		components.Shortcut{Key: "?", Desc: "help"},
		components.Shortcut{Key: "q", Desc: "quit"},
	)

	b.WriteString(statusBar.Render(m.width))

	return b.String()
}
