package logx

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field adds one or more keys to a record. Later fields override earlier
// ones with the same key.
type Field func(e *zerolog.Event)

// Keys shared by every component that logs about a job.
const (
	KeyJobID   = "job_id"
	KeyJobType = "job_type"
)

// Job tags a record with the job's id and type name.
func Job(id, typ string) Field {
	return func(e *zerolog.Event) {
		e.Str(KeyJobID, id)
		if typ != "" {
			e.Str(KeyJobType, typ)
		}
	}
}

// JobID tags a record with the job's id only.
func JobID(id string) Field { return func(e *zerolog.Event) { e.Str(KeyJobID, id) } }

func String(k, v string) Field      { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field     { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field { return func(e *zerolog.Event) { e.Int64(k, v) } }
func Uint64(k string, v uint64) Field {
	return func(e *zerolog.Event) { e.Uint64(k, v) }
}
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Time(k string, v time.Time) Field { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field        { return func(e *zerolog.Event) { e.Interface(k, v) } }

// Err sets the "err" key; a nil error adds nothing.
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Stack attaches a captured stack trace. Blank stacks are skipped.
func Stack(stack string) Field {
	return func(e *zerolog.Event) {
		if strings.TrimSpace(stack) != "" {
			e.Str("stack", stack)
		}
	}
}
