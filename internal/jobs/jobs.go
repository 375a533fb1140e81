// Package jobs holds the built-in job types that a roster can name.
package jobs

import (
	"time"

	"cronsched/internal/registry"
	"cronsched/internal/task/job"
	logx "cronsched/pkg/logx"
)

const timeLayout = "2006-01-02 15:04:05"

// Register adds every built-in job type to reg.
func Register(reg *registry.Registry, log logx.Logger) {
	log = log.With(logx.String("comp", "jobs"))
	reg.MustRegister("PrintLineJob", func() job.Job { return &PrintLineJob{Log: log} })
	reg.MustRegister("CurrentTimeJob", func() job.Job { return &CurrentTimeJob{Log: log} })
	reg.MustRegister("InfiniteSleepJob", func() job.Job { return &InfiniteSleepJob{Log: log} })
}

// PrintLineJob logs a fixed line.
type PrintLineJob struct {
	Log logx.Logger
}

func (j *PrintLineJob) JobType() string { return "PrintLineJob" }

func (j *PrintLineJob) Run() error {
	j.Log.Info("Executing PrintLineJob: Hello, this is a simple line!")
	return nil
}

// CurrentTimeJob logs the local wall-clock time.
type CurrentTimeJob struct {
	Log logx.Logger
	Now func() time.Time
}

func (j *CurrentTimeJob) JobType() string { return "CurrentTimeJob" }

func (j *CurrentTimeJob) Run() error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	t := now().Format(timeLayout)
	j.Log.Info("Executing CurrentTimeJob, Current time is "+t, logx.String("time", t))
	return nil
}

// InfiniteSleepJob never finishes on its own. Every later tick of the same
// job is skipped while it sleeps. Closing Wake ends the sleep.
type InfiniteSleepJob struct {
	Log  logx.Logger
	Wake <-chan struct{}
}

func (j *InfiniteSleepJob) JobType() string { return "InfiniteSleepJob" }

func (j *InfiniteSleepJob) Run() error {
	j.Log.Info("Executing InfiniteSleepJob, Zzzzzzzzzz ...")
	<-j.Wake // nil Wake blocks forever
	return nil
}
