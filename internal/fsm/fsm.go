// Package fsm defines the voice session state machine as a pure transition function.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateBackoff    State = "backoff"
	StateDisabled   State = "disabled"
)

const (
	// EventEnable starts a session from idle, or re-arms a disabled one.
	EventEnable Event = "enable"
	// EventAccept records an accepted final recognition result.
	EventAccept Event = "accept"
	// EventReply records a spoken reply becoming ready for playback.
	EventReply Event = "reply"
	// EventSpoken records synthesis playback completion.
	EventSpoken Event = "spoken"
	// EventRestart records the restart timer firing a new capture cycle.
	EventRestart Event = "restart"
	// EventBackoff records a recoverable capture fault.
	EventBackoff Event = "backoff"
	// EventLockout records a terminal fault disabling the session.
	EventLockout Event = "lockout"
	// EventShutdown records an explicit session disable by the caller.
	EventShutdown Event = "shutdown"
)

func Transition(current State, event Event) (State, error) {
	switch event {
	case EventShutdown:
		return StateIdle, nil
	case EventLockout:
		return StateDisabled, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventEnable:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventAccept:
			return StateProcessing, nil
		case EventReply:
			// A reply can land after the restart already returned the
			// session to listening; playback still proceeds.
			return StateSpeaking, nil
		case EventBackoff:
			return StateBackoff, nil
		case EventRestart:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventReply:
			return StateSpeaking, nil
		case EventRestart:
			return StateListening, nil
		case EventBackoff:
			return StateBackoff, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventSpoken:
			return StateListening, nil
		case EventRestart:
			return StateListening, nil
		case EventBackoff:
			return StateBackoff, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateBackoff:
		switch event {
		case EventRestart:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDisabled:
		switch event {
		case EventEnable:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
