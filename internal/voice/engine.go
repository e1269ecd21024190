// Package voice coordinates the always-on speech session: capture cycles,
// result filtering, restart scheduling, and spoken replies.
package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/nfarrow/vitalink/internal/escalation"
)

// RecognitionResult is the output of one capture utterance.
type RecognitionResult struct {
	Transcript string
	Confidence float64
	IsFinal    bool
}

// WordCount returns the number of whitespace-delimited tokens in the transcript.
func (r RecognitionResult) WordCount() int {
	return len(strings.Fields(r.Transcript))
}

// CycleEventKind identifies one capture-engine callback.
type CycleEventKind int

const (
	// CycleStarted fires when the engine begins listening.
	CycleStarted CycleEventKind = iota + 1
	// CycleResult carries one recognition result.
	CycleResult
	// CycleFault carries one engine fault; the engine still emits CycleEnded afterward.
	CycleFault
	// CycleEnded fires exactly once when the cycle finishes, fault or not.
	CycleEnded
)

// CycleEvent is one capture-engine callback tagged with its originating
// cycle so the controller can reject events from an aborted cycle.
type CycleEvent struct {
	Cycle  uint64
	Kind   CycleEventKind
	Result RecognitionResult
	Fault  escalation.Kind
}

// Cycle is one live capture-engine instance.
type Cycle interface {
	// Abort stops the cycle without waiting for a natural end. The engine
	// may still emit a trailing CycleEnded; the controller drops it by id.
	Abort()
}

// Engine creates capture cycles, one utterance per cycle.
type Engine interface {
	// Available probes whether the platform can capture speech at all.
	Available(ctx context.Context) error
	// Start begins one capture cycle. Events for the cycle are sent to the
	// events channel tagged with id, strictly ordered started -> results ->
	// optional fault -> ended.
	Start(ctx context.Context, id uint64, events chan<- CycleEvent) (Cycle, error)
}

// CapabilityError indicates the platform lacks a speech-capture capability.
// It is fatal to the voice feature only.
type CapabilityError struct {
	Cause error
}

func (e *CapabilityError) Error() string {
	if e.Cause == nil {
		return "speech capture unavailable"
	}
	return fmt.Sprintf("speech capture unavailable: %v", e.Cause)
}

func (e *CapabilityError) Unwrap() error { return e.Cause }
