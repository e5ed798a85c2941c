package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Options tune the program around the model
type Options struct {
	NoColor   bool
	AltScreen bool
}

// Run starts the controller and blocks until the user quits. Cancelling ctx
// stops the program and every query or transfer it started.
func Run(ctx context.Context, backend Backend, settings Settings, opts Options) error {
	if opts.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	model := NewModel(ctx, backend, settings)
	if _, err := tea.NewProgram(model, programOpts...).Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}
