package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled      = errors.New("storage disabled")
	ErrClosed        = errors.New("storage closed")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file at Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Retain bounds the executions kept per job (default 500).
	Retain int
}

const DefaultRetain = 500

// Outcome of one tick.
type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// Execution is one persisted history row. Skipped ticks have no ID.
type Execution struct {
	ID       string        `json:"id,omitempty"`
	JobID    string        `json:"job_id"`
	JobType  string        `json:"job_type"`
	Outcome  Outcome       `json:"outcome"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Store is the persistence API used by the recorder and the app.
type Store interface {
	AppendExecution(ctx context.Context, e Execution) error
	// RecentExecutions returns up to limit executions of jobID, newest first.
	RecentExecutions(ctx context.Context, jobID string, limit int) ([]Execution, error)
	Close() error
}
