// Package tui provides a Bubble Tea-based terminal UI for live run progress.
package tui

import "github.com/addonctl/addonctl/internal/engine"

// RunEventMsg wraps one engine event for the display.
type RunEventMsg struct {
	Event engine.Event
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// ErrMsg carries an error.
type ErrMsg struct{ Err error }

// DoneMsg signals that the run is complete.
type DoneMsg struct{}
