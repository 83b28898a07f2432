package ui

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"tubegrab/internal/pipeline"
)

// Interactive reports whether f is a terminal the TUI can draw on.
func Interactive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Run launches the TUI for one job and returns its result once the job has
// finished or been cancelled.
func Run(ctx context.Context, job pipeline.Job, refresh time.Duration, opts ...pipeline.Option) (pipeline.Result, error) {
	m := NewModel(ctx, job, refresh, opts...)
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		m.cancel()
		return *m.result, err
	}
	m.cancel()
	if fm, ok := final.(Model); ok {
		return fm.Result()
	}
	return *m.result, nil
}
