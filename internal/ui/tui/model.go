package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/addonctl/addonctl/internal/engine"
	"github.com/addonctl/addonctl/internal/reconcile"
	"github.com/addonctl/addonctl/internal/report"
)

// RowStatus is the display status of one resource row.
type RowStatus int

const (
	RowPending RowStatus = iota
	RowRunning
	RowDone
	RowBlocked
	RowFailed
)

// Row is one resource line in the progress view.
type Row struct {
	ID     string
	Status RowStatus
	// State is the reconciler state while running.
	State reconcile.State
	// Action is the final action once finished.
	Action report.Action
	Err    error
}

// Model is the Bubble Tea model for the run progress view.
type Model struct {
	ClusterName string
	Region      string
	Mode        engine.Mode

	Rows      []Row
	rowIndex  map[string]int
	Total     int
	Completed int

	StartTime    time.Time
	SpinnerFrame int

	// Cancel stops the underlying run. Quit keys call it and the view
	// stays up until the run reports back, so the in-flight resource is
	// finished and the report finalized before the program exits.
	Cancel func()

	// UI state
	Width      int
	Height     int
	Err        error
	Done       bool
	Cancelling bool
}

// NewRunModel creates a model for a run over the planned resource IDs, in
// execution order.
func NewRunModel(clusterName, region string, mode engine.Mode, ids []string) Model {
	rows := make([]Row, len(ids))
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		rows[i] = Row{ID: id}
		index[id] = i
	}
	return Model{
		ClusterName: clusterName,
		Region:      region,
		Mode:        mode,
		Rows:        rows,
		rowIndex:    index,
		Total:       len(ids),
		StartTime:   time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.Done || m.Err != nil {
				return m, tea.Quit
			}
			if !m.Cancelling {
				m.Cancelling = true
				if m.Cancel != nil {
					m.Cancel()
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case RunEventMsg:
		m.applyEvent(msg.Event)

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) applyEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventRunStarted:
		m.Total = ev.Total

	case engine.EventRunFinished:
		m.Completed = ev.Completed

	case engine.EventResourceStarted:
		m.setRow(ev.ID, func(r *Row) {
			r.Status = RowRunning
			r.State = reconcile.StateProbing
		})

	case engine.EventResourceState:
		m.setRow(ev.ID, func(r *Row) {
			r.Status = RowRunning
			r.State = ev.State
		})

	case engine.EventResourceBlocked:
		m.Completed++
		m.setRow(ev.ID, func(r *Row) {
			r.Status = RowBlocked
			r.Err = ev.Err
		})

	case engine.EventResourceFinished:
		m.Completed++
		m.setRow(ev.ID, func(r *Row) {
			r.Action = ev.Action
			r.Err = ev.Err
			if ev.Err != nil {
				r.Status = RowFailed
				return
			}
			r.Status = RowDone
		})
	}
}

func (m *Model) setRow(id string, update func(*Row)) {
	idx, ok := m.rowIndex[id]
	if !ok {
		return
	}
	update(&m.Rows[idx])
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/4, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
