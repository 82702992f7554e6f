// Package completion implements the per-entry completion state machine used
// while dispatching a diff.
//
// Every diff entry starts in StateNone. Leaf entries move straight to an
// applied state when their callback returns; entries with children pass
// through StateApplyingChildren and roll up the outcome of their subtree.
// Transitions are pure functions of (State, Event), so every edge is
// testable without running a dispatch.
package completion

import "fmt"

// State is the completion status of a single diff entry.
type State int

const (
	StateNone State = iota
	StateApplyingChildren
	StateAppliedError
	StateAppliedNoError
	StateAppliedChildrenError
	StateAppliedChildrenNoError
	StateAppliedNotFully
	StateAppliedFully
)

var stateNames = [...]string{
	StateNone:                   "none",
	StateApplyingChildren:       "applying_children",
	StateAppliedError:           "applied_error",
	StateAppliedNoError:         "applied_no_error",
	StateAppliedChildrenError:   "applied_children_error",
	StateAppliedChildrenNoError: "applied_children_no_error",
	StateAppliedNotFully:        "applied_not_fully",
	StateAppliedFully:           "applied_fully",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Final reports whether no further transition is expected.
func (s State) Final() bool {
	switch s {
	case StateAppliedError, StateAppliedNotFully, StateAppliedFully:
		return true
	default:
		return false
	}
}

// Failed reports whether the entry or its subtree did not apply cleanly.
func (s State) Failed() bool {
	switch s {
	case StateAppliedError, StateAppliedChildrenError, StateAppliedNotFully:
		return true
	default:
		return false
	}
}

// Succeeded reports whether the entry's own change was applied without error.
func (s State) Succeeded() bool {
	switch s {
	case StateAppliedNoError, StateAppliedChildrenNoError, StateAppliedFully:
		return true
	default:
		return false
	}
}

// Event drives a transition.
type Event int

const (
	// EventBeginChildren is raised before the children of an entry are visited.
	EventBeginChildren Event = iota
	// EventChildrenSucceeded is raised when every child applied cleanly.
	EventChildrenSucceeded
	// EventChildrenFailed is raised when at least one child failed.
	EventChildrenFailed
	// EventChildrenHalted is raised when dispatch stopped before all children ran.
	EventChildrenHalted
	// EventCallbackSucceeded is raised when the entry's own callback returned nil.
	EventCallbackSucceeded
	// EventCallbackFailed is raised when the entry's own callback failed.
	EventCallbackFailed
	// EventCallbackSkipped is raised when no callback is registered for the entry.
	EventCallbackSkipped
	// EventFinalize closes an entry whose callback already ran before its children.
	EventFinalize
)

var eventNames = [...]string{
	EventBeginChildren:     "begin_children",
	EventChildrenSucceeded: "children_succeeded",
	EventChildrenFailed:    "children_failed",
	EventChildrenHalted:    "children_halted",
	EventCallbackSucceeded: "callback_succeeded",
	EventCallbackFailed:    "callback_failed",
	EventCallbackSkipped:   "callback_skipped",
	EventFinalize:          "finalize",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// TransitionError is returned for an event that is not valid in a state.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid completion transition: %s on %s", e.Event, e.From)
}

type edge struct {
	from  State
	event Event
}

var transitions = map[edge]State{
	// leaf entries and ancestor-first dispatch
	{StateNone, EventCallbackSucceeded}: StateAppliedNoError,
	{StateNone, EventCallbackSkipped}:   StateAppliedNoError,
	{StateNone, EventCallbackFailed}:    StateAppliedError,

	// descendant-first dispatch starts with the children
	{StateNone, EventBeginChildren}: StateApplyingChildren,

	// ancestor-first dispatch continues with the children
	{StateAppliedNoError, EventBeginChildren}: StateApplyingChildren,

	{StateApplyingChildren, EventChildrenSucceeded}: StateAppliedChildrenNoError,
	{StateApplyingChildren, EventChildrenFailed}:    StateAppliedChildrenError,
	{StateApplyingChildren, EventChildrenHalted}:    StateAppliedNotFully,

	{StateAppliedChildrenNoError, EventCallbackSucceeded}: StateAppliedFully,
	{StateAppliedChildrenNoError, EventCallbackSkipped}:   StateAppliedFully,
	{StateAppliedChildrenNoError, EventFinalize}:          StateAppliedFully,
	{StateAppliedChildrenNoError, EventCallbackFailed}:    StateAppliedError,

	{StateAppliedChildrenError, EventCallbackSucceeded}: StateAppliedNotFully,
	{StateAppliedChildrenError, EventCallbackSkipped}:   StateAppliedNotFully,
	{StateAppliedChildrenError, EventFinalize}:          StateAppliedNotFully,
	{StateAppliedChildrenError, EventCallbackFailed}:    StateAppliedError,
}

// Next returns the state reached from s on ev.
func Next(s State, ev Event) (State, error) {
	next, ok := transitions[edge{s, ev}]
	if !ok {
		return s, &TransitionError{From: s, Event: ev}
	}
	return next, nil
}

// RollUp returns the event summarizing a set of child states. halted is true
// when dispatch stopped before every child was visited.
func RollUp(children []State, halted bool) Event {
	if halted {
		return EventChildrenHalted
	}
	for _, s := range children {
		if s.Failed() || s == StateNone || s == StateApplyingChildren {
			return EventChildrenFailed
		}
	}
	return EventChildrenSucceeded
}

// Tracker holds the completion state of every entry of one dispatch.
type Tracker struct {
	states []State
}

// NewTracker creates a tracker for n entries, all in StateNone.
func NewTracker(n int) *Tracker {
	return &Tracker{states: make([]State, n)}
}

// Fire applies ev to entry id and returns the new state.
func (t *Tracker) Fire(id int, ev Event) (State, error) {
	next, err := Next(t.states[id], ev)
	if err != nil {
		return t.states[id], fmt.Errorf("entry %d: %w", id, err)
	}
	t.states[id] = next
	return next, nil
}

// State returns the current state of entry id.
func (t *Tracker) State(id int) State {
	return t.states[id]
}

// States returns a copy of all states indexed by entry ID.
func (t *Tracker) States() []State {
	return append([]State(nil), t.states...)
}
