// Package escalation decides when repeated capture faults degrade a channel to disabled.
package escalation

// Kind classifies one capture-engine fault.
type Kind string

const (
	KindNetwork          Kind = "network"
	KindNoSpeech         Kind = "no-speech"
	KindPermissionDenied Kind = "permission-denied"
)

// Action is the policy verdict for one fault.
type Action int

const (
	// ActionRetry keeps the channel eligible for its normal restart path.
	ActionRetry Action = iota + 1
	// ActionDisable degrades the channel to its terminal disabled state.
	ActionDisable
)

// maxConsecutiveFaults is the number of consecutive recoverable faults
// tolerated before the channel is disabled. The fault that pushes the count
// past this threshold triggers the disable.
const maxConsecutiveFaults = 3

// Decision is the outcome of evaluating one fault against the running count.
type Decision struct {
	Action    Action
	NextCount int
}

// Escalate applies the shared threshold policy to one fault. Permission
// denials disable immediately regardless of count; no-speech faults are a
// natural part of an always-on microphone and never count; network faults
// accumulate and disable once more than maxConsecutiveFaults occur in a row.
func Escalate(kind Kind, currentCount int) Decision {
	if currentCount < 0 {
		currentCount = 0
	}

	switch kind {
	case KindPermissionDenied:
		return Decision{Action: ActionDisable, NextCount: currentCount + 1}
	case KindNoSpeech:
		return Decision{Action: ActionRetry, NextCount: currentCount}
	case KindNetwork:
		next := currentCount + 1
		if next > maxConsecutiveFaults {
			return Decision{Action: ActionDisable, NextCount: next}
		}
		return Decision{Action: ActionRetry, NextCount: next}
	default:
		// Unknown engine faults follow the network policy so a misbehaving
		// adapter cannot spin the restart loop forever.
		next := currentCount + 1
		if next > maxConsecutiveFaults {
			return Decision{Action: ActionDisable, NextCount: next}
		}
		return Decision{Action: ActionRetry, NextCount: next}
	}
}
