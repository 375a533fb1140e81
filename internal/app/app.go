package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cronsched/internal/config"
	"cronsched/internal/eventbus"
	"cronsched/internal/jobs"
	"cronsched/internal/registry"
	"cronsched/internal/roster"
	rtsup "cronsched/internal/runtime/supervisor"
	"cronsched/internal/storage"
	"cronsched/internal/task/engine"
	"cronsched/internal/task/job"
	"cronsched/internal/task/scheduler"
	logx "cronsched/pkg/logx"
)

// ErrConfig marks errors detected before anything is scheduled.
var ErrConfig = errors.New("configuration error")

// Options are the process inputs that are not part of the settings file.
type Options struct {
	ConfigPath string
	RosterPath string // overrides roster.path when set
	PoolSize   int    // overrides engine.workers when > 0
}

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	rec   *storage.Recorder

	reg    *registry.Registry
	roster []roster.Entry

	engine *engine.Service
	sched  *scheduler.Service
}

// New loads settings and the roster and builds every component. Nothing is
// scheduled yet; unknown job types and malformed roster lines fail here.
func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if p := strings.TrimSpace(opts.RosterPath); p != "" {
		cfg.Roster.Path = p
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	reg := registry.New()
	jobs.Register(reg, log)

	entries, err := roster.Load(cfg.Roster.Path)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	for _, e := range entries {
		if _, err := reg.New(e.Type); err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("%w: %s line %d: %w", ErrConfig, cfg.Roster.Path, e.Line, err)
		}
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	bus := eventbus.New()

	var (
		store storage.Store
		rec   *storage.Recorder
	)
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store = st
		rec = storage.NewRecorder(st, bus, log)
		appLog.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	engineSvc := engine.New(mapEngineConfig(cfg, opts.PoolSize), log.With(logx.String("comp", "engine")))
	schedSvc := scheduler.New(schedCfg, engineSvc, log.With(logx.String("comp", "scheduler")), scheduler.WithBus(bus))

	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	return &App{
		cfgm:   cfgm,
		log:    appLog,
		logs:   logSvc,
		bus:    bus,
		store:  store,
		rec:    rec,
		reg:    reg,
		roster: entries,
		engine: engineSvc,
		sched:  schedSvc,
	}, nil
}

func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start starts the pool, schedules every roster entry and starts triggering.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	if a.rec != nil {
		a.sup.Go("storage.recorder", a.rec.Run)
	}
	a.engine.Start(a.sup.Context())

	for _, e := range a.roster {
		j, err := a.reg.New(e.Type)
		if err != nil {
			return err
		}
		if _, err := a.sched.Schedule(e.Record.ID, j, e.Record.Frequency, e.Record.StartOffset); err != nil {
			return fmt.Errorf("schedule %s: %w", e.Record.ID, err)
		}
	}
	a.sched.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	if cfg := a.cfgm.Get(); cfg != nil && cfg.Reload.Enabled && a.cfgm.Path() != "" {
		a.startReload()
	}

	a.log.Info("app started",
		logx.Int("jobs", len(a.roster)),
		logx.Int("workers", a.engine.Workers()),
		logx.Any("types", a.reg.Names()),
	)
	return nil
}

// Stop stops triggering, then waits (bounded) for the pool. In-flight
// executions are never cancelled; a job that never returns only delays the
// engine step until its deadline.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.step(ctx, "scheduler", 3*time.Second, func(c context.Context) error {
		a.sched.Stop(c)
		return nil
	})
	a.step(ctx, "engine", 5*time.Second, func(c context.Context) error {
		a.engine.Stop(c)
		return nil
	})

	// Background loops (recorder drains its buffer on cancel).
	a.sup.Cancel()
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)

	a.logSummary()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("stopped", logx.Uint64("bus_dropped", a.bus.Dropped()))
	return a.logs.Close()
}

// step runs fn with an upper bound so one component can't stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}

// logSummary writes one record per job with its final state and counters.
func (a *App) logSummary() {
	snap := a.sched.Snapshot()
	for _, j := range snap.Jobs {
		fields := []logx.Field{
			logx.Job(j.Record.ID, j.Record.Type),
			logx.String("state", j.State.String()),
			logx.Uint64("runs", j.Runs),
			logx.Uint64("failures", j.Failures),
			logx.Uint64("skips", j.Skips),
		}
		if j.Last != nil {
			fields = append(fields, logx.Int64("last_duration_ms", j.Last.Duration.Milliseconds()))
		}
		a.log.Info("job summary", fields...)
	}
	if snap.HasPool {
		a.log.Info("pool summary",
			logx.Int("workers", snap.Pool.Workers),
			logx.Int("busy", snap.Pool.Busy),
			logx.Uint64("completed", snap.Pool.Completed),
			logx.Uint64("panics", snap.Pool.Panics),
			logx.Uint64("dispatch_failures", snap.DispatchFailures),
		)
	}
	c := a.sup.Counters()
	a.log.Info("goroutine summary",
		logx.Uint64("started", c.Started),
		logx.Uint64("panics", c.Panics),
		logx.Uint64("restarts", c.Restarts),
		logx.Int64("still_active", c.Active),
	)
	if a.rec != nil {
		written, failed := a.rec.Stats()
		a.log.Info("history summary", logx.Uint64("written", written), logx.Uint64("failed", failed))
	}
}

// History returns recent persisted executions of jobID, newest first.
func (a *App) History(ctx context.Context, jobID string, limit int) ([]storage.Execution, error) {
	if a.store == nil {
		return nil, storage.ErrDisabled
	}
	return a.store.RecentExecutions(ctx, jobID, limit)
}

// Jobs lists the scheduled records.
func (a *App) Jobs() []job.Record { return a.sched.Jobs() }
