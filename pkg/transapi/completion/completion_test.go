package completion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []State{
	StateNone,
	StateApplyingChildren,
	StateAppliedError,
	StateAppliedNoError,
	StateAppliedChildrenError,
	StateAppliedChildrenNoError,
	StateAppliedNotFully,
	StateAppliedFully,
}

var allEvents = []Event{
	EventBeginChildren,
	EventChildrenSucceeded,
	EventChildrenFailed,
	EventChildrenHalted,
	EventCallbackSucceeded,
	EventCallbackFailed,
	EventCallbackSkipped,
	EventFinalize,
}

func TestNext_Exhaustive(t *testing.T) {
	valid := map[State]map[Event]State{
		StateNone: {
			EventBeginChildren:     StateApplyingChildren,
			EventCallbackSucceeded: StateAppliedNoError,
			EventCallbackSkipped:   StateAppliedNoError,
			EventCallbackFailed:    StateAppliedError,
		},
		StateAppliedNoError: {
			EventBeginChildren: StateApplyingChildren,
		},
		StateApplyingChildren: {
			EventChildrenSucceeded: StateAppliedChildrenNoError,
			EventChildrenFailed:    StateAppliedChildrenError,
			EventChildrenHalted:    StateAppliedNotFully,
		},
		StateAppliedChildrenNoError: {
			EventCallbackSucceeded: StateAppliedFully,
			EventCallbackSkipped:   StateAppliedFully,
			EventFinalize:          StateAppliedFully,
			EventCallbackFailed:    StateAppliedError,
		},
		StateAppliedChildrenError: {
			EventCallbackSucceeded: StateAppliedNotFully,
			EventCallbackSkipped:   StateAppliedNotFully,
			EventFinalize:          StateAppliedNotFully,
			EventCallbackFailed:    StateAppliedError,
		},
	}

	for _, s := range allStates {
		for _, ev := range allEvents {
			t.Run(s.String()+"/"+ev.String(), func(t *testing.T) {
				next, err := Next(s, ev)

				want, ok := valid[s][ev]
				if !ok {
					var transitionErr *TransitionError
					require.True(t, errors.As(err, &transitionErr))
					assert.Equal(t, s, transitionErr.From)
					assert.Equal(t, ev, transitionErr.Event)
					assert.Equal(t, s, next, "state is unchanged on invalid transition")
					return
				}
				require.NoError(t, err)
				assert.Equal(t, want, next)
			})
		}
	}
}

func TestFinalStatesAcceptNothing(t *testing.T) {
	for _, s := range allStates {
		if !s.Final() {
			continue
		}
		for _, ev := range allEvents {
			_, err := Next(s, ev)
			assert.Error(t, err, "%s on %s", ev, s)
		}
	}
}

func TestStatePredicates(t *testing.T) {
	assert.True(t, StateAppliedError.Failed())
	assert.True(t, StateAppliedNotFully.Failed())
	assert.True(t, StateAppliedChildrenError.Failed())
	assert.False(t, StateAppliedFully.Failed())

	assert.True(t, StateAppliedNoError.Succeeded())
	assert.True(t, StateAppliedFully.Succeeded())
	assert.False(t, StateAppliedNotFully.Succeeded())
	assert.False(t, StateNone.Succeeded())

	assert.Equal(t, "applied_children_no_error", StateAppliedChildrenNoError.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.Equal(t, "event(42)", Event(42).String())
}

func TestRollUp(t *testing.T) {
	assert.Equal(t, EventChildrenSucceeded, RollUp(nil, false))
	assert.Equal(t, EventChildrenSucceeded, RollUp([]State{StateAppliedNoError, StateAppliedFully}, false))
	assert.Equal(t, EventChildrenFailed, RollUp([]State{StateAppliedNoError, StateAppliedError}, false))
	assert.Equal(t, EventChildrenFailed, RollUp([]State{StateAppliedNotFully}, false))
	assert.Equal(t, EventChildrenHalted, RollUp([]State{StateAppliedNoError}, true))
}

func TestTracker_LeafToRootSequence(t *testing.T) {
	tr := NewTracker(2)

	_, err := tr.Fire(0, EventBeginChildren)
	require.NoError(t, err)
	_, err = tr.Fire(1, EventCallbackSucceeded)
	require.NoError(t, err)

	_, err = tr.Fire(0, RollUp([]State{tr.State(1)}, false))
	require.NoError(t, err)
	state, err := tr.Fire(0, EventCallbackSucceeded)
	require.NoError(t, err)

	assert.Equal(t, StateAppliedFully, state)
	assert.Equal(t, []State{StateAppliedFully, StateAppliedNoError}, tr.States())

	_, err = tr.Fire(0, EventBeginChildren)
	assert.Error(t, err)
	assert.Equal(t, StateAppliedFully, tr.State(0))
}

func TestTracker_RootToLeafSequence(t *testing.T) {
	tr := NewTracker(2)

	_, err := tr.Fire(0, EventCallbackSucceeded)
	require.NoError(t, err)
	_, err = tr.Fire(0, EventBeginChildren)
	require.NoError(t, err)
	_, err = tr.Fire(1, EventCallbackFailed)
	require.NoError(t, err)
	_, err = tr.Fire(0, RollUp([]State{tr.State(1)}, false))
	require.NoError(t, err)
	state, err := tr.Fire(0, EventFinalize)
	require.NoError(t, err)

	assert.Equal(t, StateAppliedNotFully, state)
}
