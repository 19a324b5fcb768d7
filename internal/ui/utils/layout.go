package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fenilsonani/dlsort/internal/ui/styles"
)

const (
	// MinTerminalWidth is the minimum recommended terminal width
	MinTerminalWidth = 80
	// MinTerminalHeight is the minimum recommended terminal height
	MinTerminalHeight = 24
)

// reservedLines covers the title, base path, status line and status bar
const reservedLines = 10

// DisplayPath abbreviates the home directory to ~ and truncates the result
// to maxWidth
func DisplayPath(path string, maxWidth int) string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if path == home {
			path = "~"
		} else if rel, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
			path = "~" + string(filepath.Separator) + rel
		}
	}
	return TruncatePath(path, maxWidth)
}

// TruncatePath shortens a category folder to maxWidth runes. The last element
// is the part users recognize, so the path is cut from the left.
func TruncatePath(path string, maxWidth int) string {
	r := []rune(path)
	if len(r) <= maxWidth {
		return path
	}
	if maxWidth < 4 {
		return "..."
	}

	sep := string(filepath.Separator)
	parts := strings.Split(filepath.Clean(path), sep)

	// Keep as many trailing elements as fit behind ".../"
	kept := ""
	for i := len(parts) - 1; i >= 0; i-- {
		candidate := parts[i]
		if kept != "" {
			candidate += sep + kept
		}
		if len([]rune(candidate))+4 > maxWidth {
			break
		}
		kept = candidate
	}
	if kept != "" {
		return "..." + sep + kept
	}

	return "..." + string(r[len(r)-(maxWidth-3):])
}

// CalculatePageSize returns how many category rows fit below the header
func CalculatePageSize(terminalHeight int) int {
	pageSize := terminalHeight - reservedLines
	if pageSize < 5 {
		pageSize = 5
	}
	return pageSize
}

// IsTerminalTooSmall checks if the terminal is below minimum recommended size
func IsTerminalTooSmall(width, height int) bool {
	return width < MinTerminalWidth || height < MinTerminalHeight
}

// GetSizeWarningBanner returns a warning banner if terminal is too small
func GetSizeWarningBanner(width, height int) string {
	if !IsTerminalTooSmall(width, height) {
		return ""
	}

	warning := fmt.Sprintf("⚠️  Terminal too small, folder paths will be cut (want %dx%d", MinTerminalWidth, MinTerminalHeight)
	if width > 0 && height > 0 {
		warning += fmt.Sprintf(", have %dx%d", width, height)
	}
	return styles.WarningStyle.Render(warning+")") + "\n\n"
}

// TruncateString truncates a string to maxLen runes, adding ellipsis if needed
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}
