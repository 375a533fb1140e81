package engine

import (
	"time"
)

// Config controls the worker pool.
//
// The scheduler is trigger-only; execution capacity lives here.
type Config struct {
	// Workers is the fixed pool capacity. Values <= 0 fall back to DefaultWorkers.
	Workers int
	// QueueSize bounds dispatched-but-not-started tasks. When the queue is full
	// Submit blocks; tasks are never dropped.
	QueueSize int
	// HistorySize bounds the in-memory execution history.
	HistorySize int
}

const (
	DefaultWorkers     = 2
	DefaultQueueSize   = 256
	DefaultHistorySize = 200
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	return c
}

// Task is a unit of work executed by one pool worker.
type Task struct {
	ID   string
	Name string
	Run  func()
}

// HistoryItem records one task the pool ran.
type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Panicked   bool
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Running   bool
	Workers   int
	Busy      int
	QueueLen  int
	QueueCap  int
	Waiting   int // Submit calls blocked on a full queue
	Submitted uint64
	Completed uint64
	Panics    uint64
	History   []HistoryItem
}
