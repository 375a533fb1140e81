// Package logx is the structured logging layer of cronsched, a thin wrapper
// over zerolog.
//
// Console records are human-readable with a short caller; the optional file
// sink is JSON, one record per line. Service.Apply swaps level and sinks at
// runtime without invalidating Loggers already handed to components.
package logx
