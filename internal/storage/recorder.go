package storage

import (
	"context"
	"sync/atomic"
	"time"

	"cronsched/internal/eventbus"
	"cronsched/internal/task/execution"
	logx "cronsched/pkg/logx"
)

const recorderBuffer = 256

// Recorder writes job outcomes from the bus into a Store.
type Recorder struct {
	store Store
	log   logx.Logger

	events <-chan eventbus.Event
	unsub  func()

	written atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder subscribes to bus right away so no event published after this
// call is missed; Run consumes them.
func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	ch, unsub := bus.Subscribe(recorderBuffer, eventbus.JobFinished, eventbus.JobFailed, eventbus.JobSkipped)
	return &Recorder{store: store, log: log.With(logx.String("comp", "recorder")), events: ch, unsub: unsub}
}

// Run records events until ctx ends, then drains what is already buffered.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.unsub()
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case ev, ok := <-r.events:
			if !ok {
				return nil
			}
			r.record(ctx, ev)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				return
			}
			r.record(ctx, ev)
		default:
			return
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev eventbus.Event) {
	e, ok := ToExecution(ev)
	if !ok {
		return
	}
	if err := r.store.AppendExecution(ctx, e); err != nil {
		r.failed.Add(1)
		r.log.Warn("history append failed", logx.JobID(e.JobID), logx.Err(err))
		return
	}
	r.written.Add(1)
}

// Stats returns the number of rows written and failed appends.
func (r *Recorder) Stats() (written, failed uint64) {
	return r.written.Load(), r.failed.Load()
}

// ToExecution converts a lifecycle event into a history row.
func ToExecution(ev eventbus.Event) (Execution, bool) {
	data, ok := ev.Data.(execution.Event)
	if !ok {
		return Execution{}, false
	}
	var outcome Outcome
	switch ev.Type {
	case eventbus.JobFinished:
		outcome = OutcomeFinished
	case eventbus.JobFailed:
		outcome = OutcomeFailed
	case eventbus.JobSkipped:
		outcome = OutcomeSkipped
	default:
		return Execution{}, false
	}
	return Execution{
		ID:       data.ExecutionID,
		JobID:    data.JobID,
		JobType:  data.JobType,
		Outcome:  outcome,
		Started:  data.Started,
		Duration: data.Duration,
		Error:    data.Error,
	}, true
}

// Close unsubscribes from the bus. Run also does this when it returns.
func (r *Recorder) Close() { r.unsub() }
