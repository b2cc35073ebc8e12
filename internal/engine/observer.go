package engine

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/addonctl/addonctl/internal/reconcile"
	"github.com/addonctl/addonctl/internal/report"
)

// EventType classifies engine events.
type EventType string

const (
	// EventRunStarted fires once before the first resource.
	EventRunStarted EventType = "run.started"
	// EventRunFinished fires once after the report is finalized.
	EventRunFinished EventType = "run.finished"

	// EventResourceStarted fires when a resource begins reconciling.
	EventResourceStarted EventType = "resource.started"
	// EventResourceFinished fires with the resource's final result.
	EventResourceFinished EventType = "resource.finished"
	// EventResourceBlocked fires for resources skipped because a
	// dependency failed; they are never attempted.
	EventResourceBlocked EventType = "resource.blocked"
	// EventResourceState fires on every reconciler state change.
	EventResourceState EventType = "resource.state"
)

// Event is one structured engine event. Consumers must not block: sinks run
// on the reconciliation path.
type Event struct {
	Type      EventType
	Mode      Mode
	ID        string
	Action    report.Action
	State     reconcile.State
	Err       error
	Total     int
	Completed int
	Timestamp time.Time
}

// Sink receives engine events.
type Sink interface {
	Event(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Event(Event) {}

// LogSink writes events to a structured logger.
type LogSink struct {
	Log logr.Logger
}

func (s LogSink) Event(ev Event) {
	switch ev.Type {
	case EventRunStarted:
		s.Log.Info("run started", "mode", ev.Mode, "resources", ev.Total)
	case EventRunFinished:
		s.Log.Info("run finished", "mode", ev.Mode, "completed", ev.Completed)
	case EventResourceStarted:
		s.Log.Info("reconciling", "id", ev.ID)
	case EventResourceBlocked:
		s.Log.Info("blocked by failed dependency", "id", ev.ID, "error", ev.Err)
	case EventResourceFinished:
		if ev.Err != nil {
			s.Log.Error(ev.Err, "resource failed", "id", ev.ID, "action", ev.Action)
			return
		}
		s.Log.Info("resource finished", "id", ev.ID, "action", ev.Action)
	case EventResourceState:
		s.Log.V(1).Info("state", "id", ev.ID, "state", ev.State)
	}
}

// ChannelSink forwards events to a channel, dropping when the receiver lags.
// Used to feed the live progress view without stalling reconciliation.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a buffered channel sink.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buffer)}
}

func (s *ChannelSink) Event(ev Event) {
	select {
	case s.C <- ev:
	default:
	}
}

// MultiSink fans events out to several sinks.
type MultiSink []Sink

func (m MultiSink) Event(ev Event) {
	for _, s := range m {
		s.Event(ev)
	}
}
