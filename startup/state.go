package startup

import (
	"sync"
	"time"
)

// State is a node lifecycle state as seen by the coordinator.
type State int

const (
	NotStarted State = iota
	Initializing
	MigrationPending
	Ready
	Serving
	ExitRequested
	ShutDown
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Initializing:
		return "initializing"
	case MigrationPending:
		return "migration-pending"
	case Ready:
		return "ready"
	case Serving:
		return "serving"
	case ExitRequested:
		return "exit-requested"
	case ShutDown:
		return "shut-down"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == ShutDown || s == Failed
}

// Transition is one recorded state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// stateLog records transitions and notifies the hook, in order.
type stateLog struct {
	mu          sync.Mutex
	current     State
	transitions []Transition
	hook        func(Transition)
}

func (l *stateLog) set(to State) {
	l.mu.Lock()
	t := Transition{From: l.current, To: to, At: time.Now()}
	l.current = to
	l.transitions = append(l.transitions, t)
	hook := l.hook
	l.mu.Unlock()

	if hook != nil {
		hook(t)
	}
}

func (l *stateLog) state() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *stateLog) snapshot() []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transition, len(l.transitions))
	copy(out, l.transitions)
	return out
}

// States returns the visited states in order, starting with NotStarted.
func States(transitions []Transition) []State {
	states := []State{NotStarted}
	for _, t := range transitions {
		states = append(states, t.To)
	}
	return states
}
