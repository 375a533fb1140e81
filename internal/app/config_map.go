package app

import (
	"cronsched/internal/config"
	"cronsched/internal/task/engine"
	"cronsched/internal/task/scheduler"
	logx "cronsched/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// mapEngineConfig applies the pool size given on the command line, which
// wins over engine.workers.
func mapEngineConfig(cfg *config.Config, workers int) engine.Config {
	ec := engine.Config{
		Workers:     cfg.Engine.Workers,
		QueueSize:   cfg.Engine.QueueSize,
		HistorySize: cfg.Engine.HistorySize,
	}
	if workers > 0 {
		ec.Workers = workers
	}
	return ec
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	every, err := cfg.DispatchWarnEvery()
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{DispatchWarnEvery: every}, nil
}
