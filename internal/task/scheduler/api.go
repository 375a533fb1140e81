package scheduler

import (
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"cronsched/internal/eventbus"
	"cronsched/internal/task/execution"
	"cronsched/internal/task/job"
	logx "cronsched/pkg/logx"
)

// Schedule registers j under jobID. The first tick is due startOffsetMinutes
// after this call; later ticks follow every frequency period, anchored on
// the first one. Schedule never blocks on the pool.
func (s *Service) Schedule(jobID string, j job.Job, frequency job.Frequency, startOffsetMinutes int) (*execution.Supervisor, error) {
	if j == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNilJob)
	}
	rec := job.Record{
		ID:          strings.TrimSpace(jobID),
		Type:        job.TypeName(j),
		Frequency:   frequency,
		StartOffset: startOffsetMinutes,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[rec.ID]; ok {
		return nil, fmt.Errorf("job %s: %w", rec.ID, ErrDuplicateJob)
	}

	var opts []execution.Option
	if s.bus != nil {
		opts = append(opts, execution.WithBus(s.bus))
	}
	registered := s.now()
	d := &jobDef{
		rec:   rec,
		sup:   execution.New(rec, j, s.log, opts...),
		sched: newCadence(registered, rec.Offset(), rec.Frequency.Period()),
		line:  newDispatchLine(),
		warn:  rate.NewLimiter(rate.Every(s.cfg.DispatchWarnEvery), 1),
	}
	s.defs = append(s.defs, d)
	s.index[rec.ID] = d
	if s.c != nil {
		s.addEntryLocked(d)
	}

	s.log.Info("job scheduled",
		logx.Job(rec.ID, rec.Type),
		logx.String("frequency", rec.Frequency.String()),
		logx.Int("offset_min", rec.StartOffset),
		logx.Time("first_run", d.sched.First()),
	)
	s.publish(eventbus.JobScheduled, rec)
	return d.sup, nil
}

// Remove unregisters jobID. An execution already in flight finishes normally.
func (s *Service) Remove(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.index[jobID]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.index, jobID)
	for i, x := range s.defs {
		if x == d {
			s.defs = append(s.defs[:i], s.defs[i+1:]...)
			break
		}
	}
	s.log.Info("job removed", logx.JobID(jobID))
	return true
}

// Supervisor returns the execution supervisor of jobID.
func (s *Service) Supervisor(jobID string) (*execution.Supervisor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.index[jobID]
	if !ok {
		return nil, false
	}
	return d.sup, true
}

func (s *Service) State(jobID string) (execution.State, bool) {
	sup, ok := s.Supervisor(jobID)
	if !ok {
		return 0, false
	}
	return sup.State(), true
}

// Jobs lists the registered records in registration order.
func (s *Service) Jobs() []job.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.Record, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d.sup.Record())
	}
	return out
}
