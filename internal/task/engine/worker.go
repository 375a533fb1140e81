package engine

import (
	"context"
	"runtime/debug"
	"time"

	logx "cronsched/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan queuedTask) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case qt, ok := <-queue:
			if !ok {
				return
			}
			s.busy.Add(1)
			s.execOne(qt)
			s.busy.Add(-1)
		}
	}
}

func (s *Service) execOne(qt queuedTask) {
	start := time.Now()
	queueDelay := start.Sub(qt.enqueuedAt)
	if queueDelay < 0 {
		queueDelay = 0
	}
	s.log.Debug("task.started", logx.String("task", qt.task.Name), logx.Duration("queue_delay", queueDelay))

	panicked := false
	// Last line of defense: the job supervisor already absorbs failures, but a
	// panicking task must not kill the worker.
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				s.panics.Add(1)
				s.log.Error("task.panic", logx.String("task", qt.task.Name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		qt.task.Run()
	}()

	dur := time.Since(start)
	s.completed.Add(1)
	s.log.Debug("task.completed", logx.String("task", qt.task.Name), logx.Duration("queue_delay", queueDelay), logx.Duration("dur", dur))
	s.record(HistoryItem{
		ID:         qt.task.ID,
		Name:       qt.task.Name,
		Started:    start,
		QueueDelay: queueDelay,
		Duration:   dur,
		Panicked:   panicked,
	})
}
