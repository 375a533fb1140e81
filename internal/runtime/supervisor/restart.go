package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	logx "cronsched/pkg/logx"
)

// RestartOption tunes GoRestart.
type RestartOption func(*restartPolicy)

type restartPolicy struct {
	min, max    time.Duration
	maxRestarts int // 0: unlimited
	healthyRun  time.Duration
}

// WithRestartBackoff sets the first and the largest wait between restarts.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.min = min
		}
		if max > 0 {
			p.max = max
		}
	}
}

// WithMaxRestarts fails the supervisor after n restarts. The first run does
// not count.
func WithMaxRestarts(n int) RestartOption { return func(p *restartPolicy) { p.maxRestarts = n } }

// GoRestart keeps fn running until the shared context ends. An error or panic
// restarts it after a jittered, doubling backoff; returning nil (or
// context.Canceled) ends it for good. A run that lasted long enough resets
// the backoff.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{min: 250 * time.Millisecond, max: 30 * time.Second, healthyRun: 30 * time.Second}
	for _, o := range opts {
		o(&p)
	}
	p.max = max(p.max, p.min)

	s.spawn(func() {
		defer s.log.Debug("goroutine stopped", logx.String("name", name))
		wait := p.min
		for n := 1; ; n++ {
			began := time.Now()
			err := s.call(name, fn)
			if err == nil || errors.Is(err, context.Canceled) || s.ctx.Err() != nil {
				return
			}
			if p.maxRestarts > 0 && n > p.maxRestarts {
				s.log.Error("goroutine gave up", logx.String("name", name), logx.Int("restarts", n-1), logx.Err(err))
				s.fail(fmt.Errorf("%s: %w", name, err))
				return
			}
			s.restarts.Add(1)

			if time.Since(began) >= p.healthyRun {
				wait = p.min
			}
			sleep := wait + rand.N(wait/5+1)
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", sleep), logx.Err(err))
			t := time.NewTimer(sleep)
			select {
			case <-s.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			wait = min(wait*2, p.max)
		}
	})
}
