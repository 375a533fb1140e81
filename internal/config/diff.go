package config

import (
	"encoding/json"
	"hash/fnv"
	"reflect"
)

// Changed lists the top-level sections that differ between two configs.
func Changed(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var out []string
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		out = append(out, "logging")
	}
	if oldCfg.Engine != newCfg.Engine {
		out = append(out, "engine")
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		out = append(out, "scheduler")
	}
	if oldCfg.Roster != newCfg.Roster {
		out = append(out, "roster")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	if oldCfg.Reload != newCfg.Reload {
		out = append(out, "reload")
	}
	return out
}

// HotReloadable reports whether a section can be applied without a restart.
func HotReloadable(section string) bool {
	return section == "logging"
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil || len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
