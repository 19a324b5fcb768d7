package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/ui/models"
)

// RunInteractive starts the interactive TUI mode
func RunInteractive(ctx context.Context, eng *engine.Engine) error {
	m := models.NewAppModel(ctx, eng)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("error running interactive mode: %w", err)
	}

	return nil
}
