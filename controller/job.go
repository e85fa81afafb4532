package controller

import "fmt"

// Status is the lifecycle state of the print job for the page in view
type Status int

const (
	Idle Status = iota
	Printing
	Paused
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Printing:
		return "printing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Job is the command state of the page in view
type Job struct {
	ID              string
	PageIndex       int
	Status          Status
	RequestInFlight bool
}

// transition is one edge of the job state machine
type transition struct {
	op   string
	from []Status
	to   Status
	// fresh mints a new job ID on success, for a print issued after Stopped
	fresh bool
}

var (
	printEdge  = transition{op: "print", from: []Status{Idle, Stopped}, to: Printing, fresh: true}
	pauseEdge  = transition{op: "pause", from: []Status{Printing}, to: Paused}
	resumeEdge = transition{op: "resume", from: []Status{Paused}, to: Printing}
	stopEdge   = transition{op: "stop", from: []Status{Printing, Paused}, to: Stopped}
)

func (t transition) allowed(s Status) bool {
	for _, f := range t.from {
		if f == s {
			return true
		}
	}
	return false
}

// noopReason explains why t does not apply from s
func (t transition) noopReason(s Status) string {
	switch t.op {
	case "print":
		return "job already " + s.String() + "; stop it first"
	case "pause":
		return "not printing"
	case "resume":
		return "not paused"
	case "stop":
		return "nothing to stop"
	}
	return "nothing to do"
}
