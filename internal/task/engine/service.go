package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	rtsup "cronsched/internal/runtime/supervisor"
	logx "cronsched/pkg/logx"
)

// Service is a fixed-size worker pool shared by every scheduled job.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	q        chan queuedTask
	sup      *rtsup.Supervisor
	stopCh   chan struct{}
	stopDone chan struct{}

	busy    atomic.Int32
	waiting atomic.Int32

	submitted atomic.Uint64
	completed atomic.Uint64
	panics    atomic.Uint64
	idSeq     atomic.Uint64

	hmu     sync.Mutex
	history []HistoryItem
}

type queuedTask struct {
	task       Task
	enqueuedAt time.Time
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg.withDefaults(), log: log}
}

// Workers returns the pool capacity.
func (s *Service) Workers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Workers
}

// Start launches the workers. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh != nil {
		// Running, or a Stop is still draining: wait for it before restarting.
		done := s.stopDone
		s.mu.Unlock()
		if done == nil {
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
		if s.stopCh != nil {
			s.mu.Unlock()
			return
		}
	}

	cfg := s.cfg
	s.q = make(chan queuedTask, cfg.QueueSize)
	s.stopCh = make(chan struct{})
	s.stopDone = nil
	stopCh := s.stopCh
	queue := s.q
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log.With(logx.String("comp", "pool"))))
	sup := s.sup
	s.mu.Unlock()

	for i := 0; i < cfg.Workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		// Restart workers that die unexpectedly so the pool keeps its capacity.
		sup.GoRestart(name, func(c context.Context) error {
			s.worker(c, stopCh, queue)
			select {
			case <-stopCh:
				return nil
			default:
			}
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("worker exited unexpectedly")
		})
	}

	s.log.Info("worker pool started", logx.Int("workers", cfg.Workers), logx.Int("queue", cap(queue)))
}

// Stop stops accepting work and waits (bounded by ctx) for workers to finish
// their current task. Running tasks are never interrupted; tasks still queued
// are discarded.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	close(s.stopCh)
	sup := s.sup
	queue := s.q
	s.mu.Unlock()

	go func() {
		// Wait unbounded in background; caller can still time out.
		_ = sup.Wait(context.Background())
		sup.Cancel()
		s.mu.Lock()
		s.q = nil
		s.stopCh = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("worker pool stopped", logx.Int("discarded", len(queue)))
	case <-ctx.Done():
		s.log.Warn("worker pool stop timed out", logx.Int("busy", int(s.busy.Load())), logx.Err(ctx.Err()))
	}
}

// Submit hands t to the pool. When all workers are busy and the queue is full
// it blocks until there is room, ctx is canceled, or the pool stops.
func (s *Service) Submit(ctx context.Context, t Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.Run == nil {
		return fmt.Errorf("%w: Run is nil", ErrInvalid)
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: Name is required", ErrInvalid)
	}
	now := time.Now()
	if t.ID == "" {
		t.ID = fmt.Sprintf("tsk-%x-%x", now.UnixNano(), s.idSeq.Add(1))
	}

	s.mu.Lock()
	q := s.q
	stopCh := s.stopCh
	stopping := s.stopDone != nil
	s.mu.Unlock()

	if q == nil || stopCh == nil {
		return ErrStopped
	}
	if stopping {
		return ErrStopping
	}

	qt := queuedTask{task: t, enqueuedAt: now}
	select {
	case q <- qt:
		s.submitted.Add(1)
		return nil
	default:
	}

	s.waiting.Add(1)
	defer s.waiting.Add(-1)
	s.log.Debug("pool saturated; dispatch waiting", logx.String("task", t.Name), logx.Int("queue_len", len(q)))
	select {
	case q <- qt:
		s.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-stopCh:
		return ErrStopping
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	q := s.q
	running := s.stopCh != nil && s.stopDone == nil
	s.mu.Unlock()

	snap := Snapshot{
		Running:   running,
		Workers:   cfg.Workers,
		Busy:      int(s.busy.Load()),
		Waiting:   int(s.waiting.Load()),
		Submitted: s.submitted.Load(),
		Completed: s.completed.Load(),
		Panics:    s.panics.Load(),
	}
	if q != nil {
		snap.QueueLen = len(q)
		snap.QueueCap = cap(q)
	}

	s.hmu.Lock()
	snap.History = make([]HistoryItem, len(s.history))
	copy(snap.History, s.history)
	s.hmu.Unlock()
	return snap
}

func (s *Service) record(item HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, item)
	if n := s.cfg.HistorySize; len(s.history) > n {
		s.history = s.history[len(s.history)-n:]
	}
	s.hmu.Unlock()
}
