package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventEnable)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	next, err = Transition(next, EventAccept)
	require.NoError(t, err)
	require.Equal(t, StateProcessing, next)

	next, err = Transition(next, EventReply)
	require.NoError(t, err)
	require.Equal(t, StateSpeaking, next)

	next, err = Transition(next, EventSpoken)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)
}

func TestTransitionShutdownFromAnyState(t *testing.T) {
	states := []State{StateIdle, StateListening, StateProcessing, StateSpeaking, StateBackoff, StateDisabled}
	for _, state := range states {
		next, err := Transition(state, EventShutdown)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionLockoutFromAnyState(t *testing.T) {
	states := []State{StateIdle, StateListening, StateProcessing, StateSpeaking, StateBackoff, StateDisabled}
	for _, state := range states {
		next, err := Transition(state, EventLockout)
		require.NoError(t, err)
		require.Equal(t, StateDisabled, next)
	}
}

func TestTransitionRestartIsOnlyExitFromBackoff(t *testing.T) {
	next, err := Transition(StateBackoff, EventRestart)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	for _, event := range []Event{EventEnable, EventAccept, EventReply, EventSpoken, EventBackoff} {
		next, err := Transition(StateBackoff, event)
		require.Error(t, err)
		require.Equal(t, StateBackoff, next)
	}
}

func TestTransitionDisabledUntilReEnabled(t *testing.T) {
	for _, event := range []Event{EventAccept, EventReply, EventSpoken, EventRestart, EventBackoff} {
		next, err := Transition(StateDisabled, event)
		require.Error(t, err)
		require.Equal(t, StateDisabled, next)
	}

	next, err := Transition(StateDisabled, EventEnable)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle accept invalid", state: StateIdle, event: EventAccept, want: StateIdle, wantErr: true},
		{name: "idle spoken invalid", state: StateIdle, event: EventSpoken, want: StateIdle, wantErr: true},
		{name: "listening enable invalid", state: StateListening, event: EventEnable, want: StateListening, wantErr: true},
		{name: "listening reply valid", state: StateListening, event: EventReply, want: StateSpeaking, wantErr: false},
		{name: "listening restart valid", state: StateListening, event: EventRestart, want: StateListening, wantErr: false},
		{name: "processing accept invalid", state: StateProcessing, event: EventAccept, want: StateProcessing, wantErr: true},
		{name: "processing restart valid", state: StateProcessing, event: EventRestart, want: StateListening, wantErr: false},
		{name: "speaking accept invalid", state: StateSpeaking, event: EventAccept, want: StateSpeaking, wantErr: true},
		{name: "speaking backoff valid", state: StateSpeaking, event: EventBackoff, want: StateBackoff, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventEnable)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
