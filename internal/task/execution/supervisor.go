// Package execution supervises the repeated executions of one scheduled job.
//
// A Supervisor is created once per registered job and reused for every tick.
// It tracks a four-state lifecycle and skips a tick while the previous
// execution of the same job is still in flight.
package execution

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cronsched/internal/eventbus"
	"cronsched/internal/task/job"
	logx "cronsched/pkg/logx"
)

// Event is the payload published on the bus for job lifecycle events.
type Event struct {
	ExecutionID string        `json:"execution_id,omitempty"`
	JobID       string        `json:"job_id"`
	JobType     string        `json:"job_type"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Result describes one completed execution.
type Result struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Snapshot is a point-in-time view for diagnostics.
type Snapshot struct {
	Record   job.Record
	State    State
	Running  bool
	Runs     uint64
	Failures uint64
	Skips    uint64
	Last     *Result
}

type Option func(*Supervisor)

// WithBus publishes lifecycle events to bus.
func WithBus(bus eventbus.Bus) Option { return func(s *Supervisor) { s.bus = bus } }

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		if now != nil {
			s.now = now
		}
	}
}

type Supervisor struct {
	rec job.Record
	job job.Job
	log logx.Logger
	bus eventbus.Bus
	now func() time.Time

	state atomic.Int32 // State
	guard atomic.Bool  // true while an execution is in flight

	runs     atomic.Uint64
	failures atomic.Uint64
	skips    atomic.Uint64
	last     atomic.Pointer[Result]
}

// New wraps j. The record's Type is filled from j when empty.
func New(rec job.Record, j job.Job, log logx.Logger, opts ...Option) *Supervisor {
	if rec.Type == "" {
		rec.Type = job.TypeName(j)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Supervisor{
		rec: rec,
		job: j,
		log: log.With(logx.Job(rec.ID, rec.Type)),
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.state.Store(int32(Scheduled))
	return s
}

func (s *Supervisor) Record() job.Record { return s.rec }

// State returns the outcome of the latest completed execution, or Running
// while one is in flight.
func (s *Supervisor) State() State { return State(s.state.Load()) }

// Running reports whether the overlap guard is held.
func (s *Supervisor) Running() bool { return s.guard.Load() }

// Last returns the most recently completed execution, if any.
func (s *Supervisor) Last() (Result, bool) {
	r := s.last.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

func (s *Supervisor) Snapshot() Snapshot {
	snap := Snapshot{
		Record:   s.rec,
		State:    s.State(),
		Running:  s.Running(),
		Runs:     s.runs.Load(),
		Failures: s.failures.Load(),
		Skips:    s.skips.Load(),
	}
	if r := s.last.Load(); r != nil {
		cp := *r
		snap.Last = &cp
	}
	return snap
}

// Trigger runs one execution of the job unless the previous one is still in
// flight. It never panics and never returns the job's failure.
func (s *Supervisor) Trigger() {
	if !s.guard.CompareAndSwap(false, true) {
		s.skips.Add(1)
		s.log.Warn("job skipped: still running", logx.Uint64("skips", s.skips.Load()))
		s.publish(eventbus.JobSkipped, Event{JobID: s.rec.ID, JobType: s.rec.Type, Started: s.now()})
		return
	}
	// The state must be final before the guard is released.
	defer s.guard.Store(false)

	s.state.Store(int32(Running))
	s.runs.Add(1)
	id := uuid.NewString()
	start := s.now()
	s.log.Info("job started", logx.String("execution_id", id))
	s.publish(eventbus.JobStarted, Event{ExecutionID: id, JobID: s.rec.ID, JobType: s.rec.Type, Started: start})

	err := s.invoke()

	dur := s.now().Sub(start)
	if dur < 0 {
		dur = 0
	}
	res := &Result{ID: id, Started: start, Duration: dur, Err: err}
	ev := Event{ExecutionID: id, JobID: s.rec.ID, JobType: s.rec.Type, Started: start, Duration: dur}

	if err != nil {
		s.failures.Add(1)
		s.last.Store(res)
		s.state.Store(int32(Failed))
		ev.Error = err.Error()
		s.log.Error("job failed", logx.String("execution_id", id), logx.Err(err), logx.Int64("duration_ms", dur.Milliseconds()))
		s.publish(eventbus.JobFailed, ev)
		return
	}
	s.last.Store(res)
	s.state.Store(int32(Finished))
	s.log.Info("job completed", logx.String("execution_id", id), logx.Int64("duration_ms", dur.Milliseconds()))
	s.publish(eventbus.JobFinished, ev)
}

// invoke runs the job body, converting a panic into an error so one bad job
// can't take down the worker that runs it.
func (s *Supervisor) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Debug("job panic stack", logx.Stack(string(debug.Stack())))
		}
	}()
	if s.job == nil {
		return fmt.Errorf("job %s has no body", s.rec.ID)
	}
	return s.job.Run()
}

func (s *Supervisor) publish(typ string, ev Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: ev})
}
