package model

import "time"

type OutcomeStatus string

const (
	OutcomeCreated  OutcomeStatus = "CREATED"
	OutcomeFresh    OutcomeStatus = "FRESH"
	OutcomeTimedOut OutcomeStatus = "TIMED_OUT"
	OutcomeRejected OutcomeStatus = "REJECTED"
	OutcomeFailed   OutcomeStatus = "FAILED"
)

// Outcome is the structured result of one resource's backup workflow.
// The orchestrator folds outcomes into the run report; workflows never
// touch the report directly.
type Outcome struct {
	Resource    Resource
	Status      OutcomeStatus
	Backup      *Backup
	Transferred bool
	Err         error
}

// Failed reports whether the outcome should count against the run.
// A fresh resource is a no-op, not a failure; a created backup whose
// transfer failed still counts as an error.
func (o Outcome) Failed() bool {
	switch o.Status {
	case OutcomeCreated:
		return !o.Transferred
	case OutcomeFresh:
		return false
	default:
		return true
	}
}

const (
	RunStatusDone  = "Done"
	RunStatusError = "Error"
)

// RunReport aggregates one orchestrator execution.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int
	Created    int
	Errors     int
}

func NewRunReport(runID string, startedAt time.Time) *RunReport {
	return &RunReport{RunID: runID, StartedAt: startedAt}
}

func (r *RunReport) Fold(o Outcome) {
	r.Scanned++
	if o.Status == OutcomeCreated {
		r.Created++
	}

	if o.Failed() {
		r.Errors++
	}
}

func (r *RunReport) Status() string {
	if r.Errors > 0 {
		return RunStatusError
	}

	return RunStatusDone
}

func (r *RunReport) Runtime() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
