package scheduler

import (
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	type entry struct {
		d  *jobDef
		id cron.EntryID
	}
	defs := make([]entry, 0, len(s.defs))
	for _, d := range s.defs {
		defs = append(defs, entry{d: d, id: d.entryID})
	}
	c := s.c
	pool := s.pool
	s.mu.Unlock()

	items := make([]JobInfo, 0, len(defs))
	for _, x := range defs {
		it := JobInfo{Snapshot: x.d.sup.Snapshot(), FirstRun: x.d.sched.First()}
		if c != nil && x.id != 0 {
			e := c.Entry(x.id)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		items = append(items, it)
	}

	snap := Snapshot{
		Running:          c != nil,
		Jobs:             items,
		DispatchFailures: atomic.LoadUint64(&s.dispatchFailures),
	}
	if pi, ok := pool.(poolInspector); ok {
		snap.HasPool = true
		snap.Pool = pi.Snapshot()
	}
	return snap
}
