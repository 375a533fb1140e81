// Package job holds the leaf types of the scheduler: the Job capability,
// the closed Frequency table, and the immutable Record describing one
// scheduled job.
package job

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

var (
	ErrEmptyID          = errors.New("job id required")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidOffset    = errors.New("start offset must be >= 0 minutes")
)

// Job is a unit of work: it takes no input and may fail.
// A panic inside Run is treated like a returned error.
type Job interface {
	Run() error
}

// Func adapts a plain function to Job.
type Func func() error

func (f Func) Run() error { return f() }

// Typed is implemented by jobs that report their own type name.
type Typed interface {
	JobType() string
}

// TypeName returns the name used for j in log records.
func TypeName(j Job) string {
	if j == nil {
		return ""
	}
	if t, ok := j.(Typed); ok {
		if n := strings.TrimSpace(t.JobType()); n != "" {
			return n
		}
	}
	rt := reflect.TypeOf(j)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if n := rt.Name(); n != "" {
		return n
	}
	return rt.String()
}

// Frequency is one of four fixed cadences.
type Frequency int

const (
	Minutely Frequency = iota + 1
	Hourly
	Daily
	Weekly
)

var periodMinutes = map[Frequency]int{
	Minutely: 1,
	Hourly:   60,
	Daily:    1440,
	Weekly:   10080,
}

var frequencyNames = map[Frequency]string{
	Minutely: "MINUTELY",
	Hourly:   "HOURLY",
	Daily:    "DAILY",
	Weekly:   "WEEKLY",
}

// Frequencies lists the valid cadences from shortest to longest.
func Frequencies() []Frequency { return []Frequency{Minutely, Hourly, Daily, Weekly} }

func (f Frequency) Valid() bool {
	_, ok := periodMinutes[f]
	return ok
}

// Minutes returns the period length in minutes (0 for an invalid value).
func (f Frequency) Minutes() int { return periodMinutes[f] }

// Period returns the time between two ticks.
func (f Frequency) Period() time.Duration { return time.Duration(periodMinutes[f]) * time.Minute }

func (f Frequency) String() string {
	if n, ok := frequencyNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// ParseFrequency accepts the frequency names case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for f, n := range frequencyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want MINUTELY, HOURLY, DAILY or WEEKLY)", ErrInvalidFrequency, s)
}

// MaxStartOffset is the largest offset (minutes) that still fits a time.Duration.
const MaxStartOffset = math.MaxInt64 / int64(time.Minute)

// Record is the immutable registration metadata of one scheduled job.
type Record struct {
	ID          string
	Type        string
	Frequency   Frequency
	StartOffset int // minutes before the first tick
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("job %s: %w: %v", r.ID, ErrInvalidFrequency, r.Frequency)
	}
	if r.StartOffset < 0 || int64(r.StartOffset) > MaxStartOffset {
		return fmt.Errorf("job %s: %w (got %d)", r.ID, ErrInvalidOffset, r.StartOffset)
	}
	return nil
}

// Offset returns the delay before the first tick.
func (r Record) Offset() time.Duration { return time.Duration(r.StartOffset) * time.Minute }
