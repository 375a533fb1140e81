package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"cronsched/internal/task/engine"
	logx "cronsched/pkg/logx"
)

// dispatchLine keeps the ticks of one job in order while they wait for the
// pool: a tick enters only after every earlier tick of the same job has been
// handed over.
type dispatchLine struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func newDispatchLine() *dispatchLine {
	l := &dispatchLine{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *dispatchLine) ticket() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.next
	l.next++
	return t
}

func (l *dispatchLine) wait(t uint64) {
	l.mu.Lock()
	for l.serving != t {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

func (l *dispatchLine) done() {
	l.mu.Lock()
	l.serving++
	l.cond.Broadcast()
	l.mu.Unlock()
}

// tick is the cron job body of one registered job.
// The run context is taken when the tick fires, so a tick still waiting in
// the line when the scheduler stops stays bound to the stopped run.
func (s *Service) tick(d *jobDef) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	t := d.line.ticket()
	d.line.wait(t)
	defer d.line.done()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		s.reportDispatchError(d, err)
		return
	}

	err := s.pool.Submit(ctx, engine.Task{Name: d.rec.ID, Run: d.sup.Trigger})
	if err != nil {
		s.reportDispatchError(d, err)
	}
}

func (s *Service) reportDispatchError(d *jobDef, err error) {
	atomic.AddUint64(&s.dispatchFailures, 1)
	if !d.warn.Allow() {
		return
	}
	reason := "pool unavailable"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, engine.ErrStopping), errors.Is(err, engine.ErrStopped):
		reason = "shutting down"
	case errors.Is(err, engine.ErrInvalid):
		reason = "rejected"
	}
	s.log.Warn("job dispatch failed",
		logx.Job(d.rec.ID, d.rec.Type),
		logx.String("reason", reason),
		logx.Err(err),
	)
}
