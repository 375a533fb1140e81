package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"cronsched/internal/eventbus"
	logx "cronsched/pkg/logx"
)

func New(cfg Config, pool Dispatcher, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:   cfg.withDefaults(),
		log:   log,
		pool:  pool,
		now:   time.Now,
		index: map[string]*jobDef{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start starts triggering. Jobs registered before Start keep the first-tick
// time computed at registration; ticks already due fire immediately. After a
// Stop, jobs resume at their next pending grid point.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	cl := cronLogger{log: s.log.With(logx.String("comp", "cron"))}
	s.c = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	s.ctx, s.cancel = context.WithCancel(ctx)

	now := s.now()
	for _, d := range s.defs {
		d.sched.rewind(now)
		s.addEntryLocked(d)
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("jobs", len(s.defs)))
}

// Stop stops triggering. Executions already in the pool are not cancelled;
// ticks still waiting for a pool slot are abandoned.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	for _, d := range s.defs {
		d.entryID = 0
	}
	s.mu.Unlock()

	if c == nil {
		return
	}
	s.log.Info("stop requested")
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", logx.Err(ctx.Err()))
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) addEntryLocked(d *jobDef) {
	d.entryID = s.c.Schedule(d.sched, cron.FuncJob(func() { s.tick(d) }))
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
