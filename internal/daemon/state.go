package daemon

import (
	"bimvault/internal/model"
	"sync"
	"time"
)

// State tracks the daemon's current activity for the status endpoint.
type State struct {
	mu        sync.RWMutex
	startedAt time.Time
	running   bool
	nextRun   time.Time
	lastRun   *RunSummary
	lastError string
}

// RunSummary is the part of a finished run worth showing on /status.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Scanned    int       `json:"scanned"`
	Created    int       `json:"created"`
	Errors     int       `json:"errors"`
	FinishedAt time.Time `json:"finished_at"`
}

type Snapshot struct {
	Running   bool        `json:"running"`
	Uptime    string      `json:"uptime"`
	NextRun   *time.Time  `json:"next_run,omitempty"`
	LastRun   *RunSummary `json:"last_run,omitempty"`
	LastError string      `json:"last_error,omitempty"`
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

func (s *State) SetNextRun(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun = at
}

func (s *State) RecordRun(report *model.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRun = &RunSummary{
		RunID:      report.RunID,
		Status:     report.Status(),
		Scanned:    report.Scanned,
		Created:    report.Created,
		Errors:     report.Errors,
		FinishedAt: report.FinishedAt,
	}
	s.lastError = ""
}

func (s *State) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err.Error()
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Running:   s.running,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		LastRun:   s.lastRun,
		LastError: s.lastError,
	}

	if !s.nextRun.IsZero() {
		next := s.nextRun
		snap.NextRun = &next
	}

	return snap
}
