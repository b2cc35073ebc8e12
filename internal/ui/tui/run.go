package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/addonctl/addonctl/internal/engine"
)

// RunTUI wraps an engine run with a Bubble Tea progress view. runFn performs
// the run while events arrive on the sink channel; the channel must be
// closed when runFn returns. Quit keys cancel the run through Model.Cancel
// and the program stays up until runFn returns, so the report is always
// finalized. The run's own error is returned after the program exits.
func RunTUI(m Model, events <-chan engine.Event, runFn func() error) error {
	p := tea.NewProgram(m, tea.WithAltScreen())

	errCh := make(chan error, 1)
	go func() {
		errCh <- runFn()
	}()

	go func() {
		for ev := range events {
			p.Send(RunEventMsg{Event: ev})
		}
		if err := <-errCh; err != nil {
			p.Send(ErrMsg{Err: err})
			return
		}
		p.Send(DoneMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	fm := finalModel.(Model)
	if fm.Err != nil {
		return fm.Err
	}
	return nil
}
