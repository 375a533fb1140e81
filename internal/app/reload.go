package app

import (
	"context"
	"strings"

	"cronsched/internal/config"
	logx "cronsched/pkg/logx"
)

// startReload watches the settings file and applies what can change at
// runtime. Only logging is hot-applied; other sections need a restart.
func (a *App) startReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections := config.Changed(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	var restart []string
	for _, s := range sections {
		if !config.HotReloadable(s) {
			restart = append(restart, s)
		}
	}
	if len(restart) > 0 {
		a.log.Warn("config sections changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}
	for _, s := range sections {
		if s == "logging" {
			a.logs.Apply(mapLogConfig(newCfg))
		}
	}
	a.log.Info("config applied", logx.String("changed", strings.Join(sections, ",")))
}
