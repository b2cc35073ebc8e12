// Package engine executes a plan end to end. It owns run-level semantics:
// install walks the plan forward, remove walks it in reverse, verify only
// probes. Per-resource failures do not abort the run; dependents of a failed
// resource are skipped without being attempted so failures never cascade
// into false successes.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/addonctl/addonctl/internal/plan"
	"github.com/addonctl/addonctl/internal/reconcile"
	"github.com/addonctl/addonctl/internal/report"
	"github.com/addonctl/addonctl/internal/resource"
)

// Mode selects the run-level operation.
type Mode string

const (
	ModeInstall Mode = "install"
	ModeVerify  Mode = "verify"
	ModeRemove  Mode = "remove"
)

// Engine executes plans through a reconciler.
type Engine struct {
	rec         *reconcile.Reconciler
	clusterName string
	log         logr.Logger
	sink        Sink
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds the number of resources reconciled at once.
// The default of 1 preserves strict plan order.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// WithSink registers an event sink for progress reporting.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// New creates an engine over the given reconciler.
func New(rec *reconcile.Reconciler, clusterName string, log logr.Logger, opts ...Option) *Engine {
	e := &Engine{
		rec:         rec,
		clusterName: clusterName,
		log:         log,
		sink:        NopSink{},
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the plan in the given mode and returns the finalized report.
// Cancellation is observed between resources; in-flight resources finish and
// unstarted ones are recorded as not attempted.
func (e *Engine) Run(ctx context.Context, mode Mode, p *plan.Plan) (*report.RunReport, error) {
	var (
		ids      []string
		op       func(context.Context, *resource.Descriptor) report.Result
		blocking bool
	)
	switch mode {
	case ModeInstall:
		ids, op, blocking = p.Order(), e.rec.Apply, true
	case ModeVerify:
		ids, op, blocking = p.Order(), e.rec.Verify, false
	case ModeRemove:
		ids, op, blocking = p.Reversed(), e.rec.Delete, true
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	rep := report.NewRunReport(string(mode), e.clusterName)
	e.sink.Event(Event{Type: EventRunStarted, Mode: mode, Total: len(ids), Timestamp: time.Now()})

	aborted := e.execute(ctx, rep, p, mode, ids, e.gates(p, mode), blocking, op)
	rep.Finalize(aborted)
	runTotal.WithLabelValues(string(mode), string(rep.Status)).Inc()

	e.sink.Event(Event{Type: EventRunFinished, Mode: mode, Completed: len(rep.Results), Timestamp: time.Now()})
	return rep, nil
}

// gates maps each resource to the resources that must reach a terminal state
// before it may start. Removal inverts the edges: dependents go first.
func (e *Engine) gates(p *plan.Plan, mode Mode) map[string][]string {
	gates := make(map[string][]string, p.Len())
	for _, id := range p.Order() {
		d := p.Descriptor(id)
		if mode == ModeRemove {
			for _, dep := range d.DependsOn {
				gates[dep] = append(gates[dep], id)
			}
			continue
		}
		gates[id] = d.DependsOn
	}
	return gates
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeRunning
	outcomeOK
	outcomeFailed
	// outcomeBlocked marks resources skipped because a gate failed. It
	// propagates: dependents of a blocked resource are blocked too.
	outcomeBlocked
)

func (e *Engine) execute(
	ctx context.Context,
	rep *report.RunReport,
	p *plan.Plan,
	mode Mode,
	ids []string,
	gates map[string][]string,
	blocking bool,
	op func(context.Context, *resource.Descriptor) report.Result,
) bool {
	limit := e.concurrency
	if limit < 1 {
		limit = 1
	}

	state := make(map[string]outcome, len(ids))
	results := make(chan report.Result)
	running := 0
	completed := 0
	aborted := false

	collect := func() {
		res := <-results
		running--
		completed++
		if res.Action == report.ActionFailed {
			state[res.ID] = outcomeFailed
		} else {
			state[res.ID] = outcomeOK
		}
		rep.Append(res)
		resourceTotal.WithLabelValues(e.clusterName, string(mode), string(res.Action)).Inc()
		e.sink.Event(Event{Type: EventResourceFinished, Mode: mode, ID: res.ID, Action: res.Action, Err: res.Err, Completed: completed, Total: len(ids), Timestamp: time.Now()})
	}

	for completed < len(ids) {
		if !aborted && ctx.Err() != nil {
			aborted = true
		}
		if aborted {
			if running > 0 {
				collect()
				continue
			}
			break
		}

		progressed := false
		for _, id := range ids {
			if running >= limit {
				break
			}
			if state[id] != outcomePending {
				continue
			}

			ready := true
			failedGate := ""
			for _, gate := range gates[id] {
				switch state[gate] {
				case outcomeOK:
				case outcomeFailed, outcomeBlocked:
					failedGate = gate
				default:
					ready = false
				}
			}
			if !ready {
				continue
			}

			if failedGate != "" && blocking {
				res := report.Result{ID: id, Action: report.ActionSkipped}.
					WithError(&reconcile.DependencyBlockedError{ID: id, Blocked: failedGate})
				state[id] = outcomeBlocked
				completed++
				progressed = true
				rep.Append(res)
				resourceTotal.WithLabelValues(e.clusterName, string(mode), string(res.Action)).Inc()
				e.sink.Event(Event{Type: EventResourceBlocked, Mode: mode, ID: id, Err: res.Err, Completed: completed, Total: len(ids), Timestamp: time.Now()})
				continue
			}

			d := p.Descriptor(id)
			state[id] = outcomeRunning
			running++
			progressed = true
			e.sink.Event(Event{Type: EventResourceStarted, Mode: mode, ID: id, Total: len(ids), Timestamp: time.Now()})
			go func(d *resource.Descriptor) {
				start := time.Now()
				res := op(ctx, d)
				resourceDuration.WithLabelValues(e.clusterName, string(mode)).Observe(time.Since(start).Seconds())
				results <- res
			}(d)
		}

		if running > 0 {
			collect()
			continue
		}
		if !progressed {
			// A valid plan always has a ready resource here; bail rather
			// than spin if the gates are inconsistent.
			e.log.Info("no runnable resources remain", "completed", completed, "total", len(ids))
			break
		}
	}

	if aborted {
		for _, id := range ids {
			if state[id] == outcomePending {
				rep.Append(report.Result{ID: id, Action: report.ActionNotAttempted})
				resourceTotal.WithLabelValues(e.clusterName, string(mode), string(report.ActionNotAttempted)).Inc()
			}
		}
	}
	return aborted
}
