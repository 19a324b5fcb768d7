package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/rules"
	"github.com/fenilsonani/dlsort/internal/ui/styles"
)

// EditField selects what the edit view changes
type EditField int

const (
	FieldDirectory EditField = iota
	FieldExtensions
	FieldBase
	FieldNewCategory
)

// String returns the field's title
func (f EditField) String() string {
	switch f {
	case FieldDirectory:
		return "Category folder"
	case FieldExtensions:
		return "Extensions"
	case FieldBase:
		return "Downloads folder"
	case FieldNewCategory:
		return "New category"
	default:
		return "Edit"
	}
}

// EditViewModel edits one value with a text input and applies it on enter
type EditViewModel struct {
	engine   *engine.Engine
	field    EditField
	category string
	input    textinput.Model
	err      error
	width    int
	height   int
}

// NewEditViewModel creates an edit view prefilled with the current value
func NewEditViewModel(eng *engine.Engine, field EditField, category string, width, height int) *EditViewModel {
	ti := textinput.New()
	ti.Prompt = "▸ "
	ti.CharLimit = 4096
	if width > 8 {
		ti.Width = width - 8
	}

	switch field {
	case FieldDirectory:
		ti.Placeholder = "/path/to/folder"
		if cat, ok := findCategory(eng, category); ok {
			ti.SetValue(cat.Destination)
		}
	case FieldExtensions:
		ti.Placeholder = ".mp3 .flac .wav"
		if cat, ok := findCategory(eng, category); ok {
			ti.SetValue(strings.Join(cat.Extensions, " "))
		}
	case FieldBase:
		ti.Placeholder = "/path/to/Downloads"
		ti.SetValue(eng.BaseDirectory())
	case FieldNewCategory:
		ti.Placeholder = "Name .ext .ext"
	}
	ti.CursorEnd()
	ti.Focus()

	return &EditViewModel{
		engine:   eng,
		field:    field,
		category: category,
		input:    ti,
		width:    width,
		height:   height,
	}
}

func findCategory(eng *engine.Engine, name string) (engine.Category, bool) {
	for _, c := range eng.Categories() {
		if c.Name == name {
			return c, true
		}
	}
	return engine.Category{}, false
}

// Init starts the cursor blinking
func (m *EditViewModel) Init() tea.Cmd {
	return textinput.Blink
}

// Err returns the last apply error, if any
func (m *EditViewModel) Err() error {
	return m.err
}

// Update handles messages
func (m *EditViewModel) Update(msg tea.Msg) (*EditViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 8 {
			m.input.Width = m.width - 8
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return EditCanceledMsg{} }
		case "enter":
			status, err := m.apply(strings.TrimSpace(m.input.Value()))
			if err != nil {
				m.err = err
				return m, nil
			}
			return m, func() tea.Msg { return EditDoneMsg{Status: status} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply saves the value through the engine and returns a status line
func (m *EditViewModel) apply(value string) (string, error) {
	switch m.field {
	case FieldDirectory:
		if value == "" {
			return "", fmt.Errorf("folder must not be empty")
		}
		moved, err := m.engine.SetCategoryDirectory(m.category, value)
		if err != nil {
			return "", err
		}
		status := fmt.Sprintf("%s now sorts into %s", m.category, value)
		if moved > 0 {
			status += fmt.Sprintf(" (%d files moved)", moved)
		}
		return status, nil

	case FieldExtensions:
		exts := rules.ParseExtensions(value)
		if err := m.engine.SetCategoryExtensions(m.category, exts); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s extensions: %s", m.category, strings.Join(exts, " ")), nil

	case FieldBase:
		if value == "" {
			return "", fmt.Errorf("folder must not be empty")
		}
		if err := m.engine.ChangeBaseDirectory(value); err != nil {
			return "", err
		}
		return fmt.Sprintf("Sorting %s", m.engine.BaseDirectory()), nil

	case FieldNewCategory:
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return "", fmt.Errorf("category name must not be empty")
		}
		name := fields[0]
		exts := rules.ParseExtensions(strings.Join(fields[1:], " "))
		if err := m.engine.AddCategory(name, exts); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added %s", name), nil
	}

	return "", fmt.Errorf("unknown field %d", m.field)
}

// View renders the edit view
func (m *EditViewModel) View() string {
	var b strings.Builder

	title := m.field.String()
	if m.category != "" {
		title = fmt.Sprintf("%s %s: %s", styles.GetCategoryIcon(m.category), m.category, title)
	}
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n\n")

	switch m.field {
	case FieldDirectory:
		b.WriteString(styles.DimStyle.Render("Files already sorted into the old folder are moved to the new one."))
	case FieldExtensions:
		b.WriteString(styles.DimStyle.Render("Separate extensions with spaces or commas. An extension may belong to several categories; the first one listed wins."))
	case FieldBase:
		b.WriteString(styles.DimStyle.Render("Category folders that were never customized follow the downloads folder. No files are moved."))
	case FieldNewCategory:
		b.WriteString(styles.DimStyle.Render("Enter the name followed by its extensions. The folder defaults to <downloads>/<name>."))
	}
	b.WriteString("\n\n")

	b.WriteString(styles.PanelStyle.Render(m.input.View()))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.ErrorStyle.Render("✗ " + m.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(styles.HelpStyle.Render("enter:save  esc:cancel"))

	return b.String()
}
