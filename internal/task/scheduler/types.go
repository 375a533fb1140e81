package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"cronsched/internal/eventbus"
	"cronsched/internal/task/engine"
	"cronsched/internal/task/execution"
	"cronsched/internal/task/job"
	logx "cronsched/pkg/logx"
)

var (
	ErrDuplicateJob     = errors.New("job id already scheduled")
	ErrNilJob           = errors.New("job is nil")
	ErrEmptyID          = job.ErrEmptyID
	ErrInvalidFrequency = job.ErrInvalidFrequency
	ErrInvalidOffset    = job.ErrInvalidOffset
)

// Config controls the scheduler (trigger) service.
type Config struct {
	// DispatchWarnEvery limits "dispatch failed" warnings per job.
	DispatchWarnEvery time.Duration
}

const DefaultDispatchWarnEvery = 5 * time.Second

func (c Config) withDefaults() Config {
	if c.DispatchWarnEvery <= 0 {
		c.DispatchWarnEvery = DefaultDispatchWarnEvery
	}
	return c
}

// Dispatcher accepts one unit of work. Submit may block while the pool is
// saturated; it fails only when ctx ends or the pool is shutting down.
type Dispatcher interface {
	Submit(ctx context.Context, t engine.Task) error
}

// poolInspector is implemented by dispatchers that expose diagnostics.
type poolInspector interface {
	Snapshot() engine.Snapshot
}

type Option func(*Service)

// WithBus publishes job lifecycle events (including registration) to bus.
func WithBus(bus eventbus.Bus) Option { return func(s *Service) { s.bus = bus } }

// WithClock overrides time.Now for registration instants (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type jobDef struct {
	rec     job.Record
	sup     *execution.Supervisor
	sched   *cadenceSchedule
	entryID cron.EntryID
	line    *dispatchLine
	warn    *rate.Limiter
}

type Service struct {
	mu sync.Mutex

	log  logx.Logger
	cfg  Config
	bus  eventbus.Bus
	now  func() time.Time
	pool Dispatcher

	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	defs  []*jobDef
	index map[string]*jobDef

	dispatchFailures uint64
}

// JobInfo describes one registered job.
type JobInfo struct {
	execution.Snapshot
	FirstRun time.Time
	Next     time.Time
	Prev     time.Time
}

type Snapshot struct {
	Running          bool
	Jobs             []JobInfo
	DispatchFailures uint64

	// Pool diagnostics, when the dispatcher exposes them.
	HasPool bool
	Pool    engine.Snapshot
}
