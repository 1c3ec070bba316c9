package session

import (
	"sync/atomic"

	"gorepl/internal/logger"
)

// Status is the lifecycle phase of a session. Phases only move forward.
type Status int32

// Lifecycle phases in order.
const (
	Idle Status = iota
	Starting
	Running
	Terminating
	Terminated
)

var statusNames = [...]string{"Idle", "Starting", "Running", "Terminating", "Terminated"}

func (s Status) String() string {
	if s < Idle || s > Terminated {
		return "Unknown"
	}
	return statusNames[s]
}

// lifecycle holds the status. Every change is a single compare-and-set so two
// callers can never both win the same transition.
type lifecycle struct {
	status   atomic.Int32
	observer func(from, to Status)
}

func (l *lifecycle) load() Status {
	return Status(l.status.Load())
}

// transition moves from -> to and reports whether this caller made the move.
func (l *lifecycle) transition(from, to Status) bool {
	if !l.status.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	logger.Transition(from.String(), to.String())
	if l.observer != nil {
		l.observer(from, to)
	}
	return true
}

// enterTerminating moves any pre-Terminating status to Terminating. Exactly one
// caller over the session's lifetime gets true.
func (l *lifecycle) enterTerminating() bool {
	for {
		current := l.load()
		if current >= Terminating {
			return false
		}
		if l.transition(current, Terminating) {
			return true
		}
	}
}
