// Package report aggregates per-resource reconciliation outcomes into a run
// report with summary counts, an overall status, and a machine-parseable
// JSON form suitable for CI gating. Presentation is someone else's job.
package report

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Action is the outcome recorded for one resource in one run.
type Action string

const (
	ActionSkipped      Action = "skipped"
	ActionCreated      Action = "created"
	ActionUpdated      Action = "updated"
	ActionDeleted      Action = "deleted"
	ActionFailed       Action = "failed"
	ActionNotAttempted Action = "notAttempted"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partialFailure"
	StatusAborted        Status = "aborted"
)

// Result records the outcome for one resource.
type Result struct {
	ID       string `json:"id"`
	Action   Action `json:"action"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts,omitempty"`

	// Err carries the typed error for in-process consumers; the JSON form
	// uses Error.
	Err error `json:"-"`
}

// WithError fills both error fields from err.
func (r Result) WithError(err error) Result {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// RunReport is the ordered sequence of per-resource results for one run.
// Appends are synchronized so concurrent reconciliation workers can share
// one report.
type RunReport struct {
	mu sync.Mutex

	Mode       string    `json:"mode"`
	Cluster    string    `json:"cluster,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Results    []Result  `json:"results"`
	Status     Status    `json:"status"`
}

// NewRunReport starts a report for one run.
func NewRunReport(mode, cluster string) *RunReport {
	return &RunReport{
		Mode:      mode,
		Cluster:   cluster,
		StartedAt: time.Now().UTC(),
	}
}

// Append records one result.
func (r *RunReport) Append(result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, result)
}

// Finalize computes the overall status. An aborted run is never reported as
// success, whatever the per-resource results say.
func (r *RunReport) Finalize(aborted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now().UTC()
	switch {
	case aborted:
		r.Status = StatusAborted
	case r.failedLocked() > 0:
		r.Status = StatusPartialFailure
	default:
		r.Status = StatusSuccess
	}
}

func (r *RunReport) failedLocked() int {
	n := 0
	for _, res := range r.Results {
		if res.Action == ActionFailed {
			n++
		}
	}
	return n
}

// Summary holds counts per action.
type Summary struct {
	Skipped      int `json:"skipped"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Deleted      int `json:"deleted"`
	Failed       int `json:"failed"`
	NotAttempted int `json:"notAttempted"`
}

// Summarize counts results per action.
func (r *RunReport) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s Summary
	for _, res := range r.Results {
		switch res.Action {
		case ActionSkipped:
			s.Skipped++
		case ActionCreated:
			s.Created++
		case ActionUpdated:
			s.Updated++
		case ActionDeleted:
			s.Deleted++
		case ActionFailed:
			s.Failed++
		case ActionNotAttempted:
			s.NotAttempted++
		}
	}
	return s
}

// ExitCode maps the run outcome to a process exit status: zero only for a
// fully successful run.
func (r *RunReport) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status == StatusSuccess {
		return 0
	}
	return 1
}

// WriteJSON writes the machine-parseable form of the report.
func (r *RunReport) WriteJSON(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// MarshalJSON serializes without the exported mutex in the output. Callers
// that race with Append must hold the lock themselves; WriteJSON does.
func (r *RunReport) MarshalJSON() ([]byte, error) {
	type alias struct {
		Mode       string    `json:"mode"`
		Cluster    string    `json:"cluster,omitempty"`
		StartedAt  time.Time `json:"startedAt"`
		FinishedAt time.Time `json:"finishedAt"`
		Results    []Result  `json:"results"`
		Status     Status    `json:"status"`
	}
	return json.Marshal(alias{
		Mode:       r.Mode,
		Cluster:    r.Cluster,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Results:    r.Results,
		Status:     r.Status,
	})
}
