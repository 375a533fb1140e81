package execution

import "fmt"

// State is the lifecycle state of a job's most recent execution.
type State int32

const (
	Scheduled State = iota
	Running
	Failed
	Finished
)

var stateNames = [...]string{
	Scheduled: "SCHEDULED",
	Running:   "RUNNING",
	Failed:    "FAILED",
	Finished:  "FINISHED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether s ends one execution. The supervisor itself is
// reused, so a terminal state is followed by Running on the next trigger.
func (s State) Terminal() bool { return s == Failed || s == Finished }
