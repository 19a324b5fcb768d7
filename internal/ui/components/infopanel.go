package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/ui/styles"
)

var (
	panelTitleStyle = lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Underline(true)
	panelLabelStyle = lipgloss.NewStyle().Foreground(styles.Secondary).Bold(true)
	panelValueStyle = lipgloss.NewStyle().Foreground(styles.Text)
	panelHintStyle  = lipgloss.NewStyle().Foreground(styles.TextDim).Italic(true)
)

// InfoPanel is a bordered box of labeled lines shown over a view
type InfoPanel struct {
	title   string
	items   []InfoItem
	visible bool
	width   int
}

// InfoItem is one labeled line of an InfoPanel
type InfoItem struct {
	Icon  string
	Label string
	Value string
}

// NewInfoPanel creates a hidden panel
func NewInfoPanel(title string, width int) *InfoPanel {
	return &InfoPanel{title: title, width: width}
}

// AddItem appends a line
func (p *InfoPanel) AddItem(label, value, icon string) {
	p.items = append(p.items, InfoItem{Icon: icon, Label: label, Value: value})
}

// SetVisible shows or hides the panel
func (p *InfoPanel) SetVisible(visible bool) {
	p.visible = visible
}

// IsVisible reports whether the panel is shown
func (p *InfoPanel) IsVisible() bool {
	return p.visible
}

// Render draws the panel, or "" while it is hidden. It takes half the
// terminal, between 40 and 80 columns.
func (p *InfoPanel) Render() string {
	if !p.visible || len(p.items) == 0 {
		return ""
	}

	width := min(max(p.width/2, 40), 80)
	box := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(styles.FocusBorder).
		Padding(1, 2).
		Width(width)

	lines := make([]string, 0, len(p.items)+4)
	lines = append(lines, panelTitleStyle.Render(p.title), "")
	for _, item := range p.items {
		line := panelLabelStyle.Render(item.Label+":") + " " + panelValueStyle.Render(item.Value)
		if item.Icon != "" {
			line = item.Icon + " " + line
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", panelHintStyle.Render("Press 'i' to close"))

	return box.Render(strings.Join(lines, "\n"))
}

// CategoryInfoPanel describes cat. all is every category in classification
// order; extensions that an earlier category also lists never reach cat and
// are shown as shadowed.
func CategoryInfoPanel(cat engine.Category, all []engine.Category, width int) *InfoPanel {
	panel := NewInfoPanel("Category Information", width)
	panel.AddItem("Category", cat.Name, styles.GetCategoryIcon(cat.Name))

	exts := strings.Join(cat.Extensions, " ")
	if exts == "" {
		exts = "(files matching no other category)"
	}
	panel.AddItem("Extensions", fmt.Sprintf("%s (%d)", exts, len(cat.Extensions)), "🏷️")

	if shadowed := shadowedExtensions(cat, all); len(shadowed) > 0 {
		panel.AddItem("Shadowed", strings.Join(shadowed, " "), "⚠️")
	}

	destination := cat.Destination
	if !cat.Custom {
		destination += " (default)"
	}
	panel.AddItem("Destination", destination, "📁")

	return panel
}

// shadowedExtensions lists the extensions of cat claimed by a category
// listed before it
func shadowedExtensions(cat engine.Category, all []engine.Category) []string {
	claimed := make(map[string]string)
	for _, c := range all {
		if c.Name == cat.Name {
			break
		}
		for _, ext := range c.Extensions {
			if _, ok := claimed[ext]; !ok {
				claimed[ext] = c.Name
			}
		}
	}

	var out []string
	for _, ext := range cat.Extensions {
		if owner, ok := claimed[ext]; ok {
			out = append(out, fmt.Sprintf("%s → %s", ext, owner))
		}
	}
	return out
}
